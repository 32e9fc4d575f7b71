package app

import (
	"fmt"

	"backtestEngine/config"
	"backtestEngine/internal/adapters/alpacaclient"
	"backtestEngine/internal/adapters/binanceclient"
	"backtestEngine/internal/adapters/csvstore"
	"backtestEngine/internal/adapters/parquetstore"
	"backtestEngine/internal/ports"
)

// NewProvider builds the market data provider selected by cfg.DataSource.
func NewProvider(cfg *config.Config, logger ports.Logger) (ports.MarketDataProvider, error) {
	return NewProviderFor(cfg.DataSource, cfg, logger)
}

// NewProviderFor builds the provider named source using cfg's credentials.
func NewProviderFor(source string, cfg *config.Config, logger ports.Logger) (ports.MarketDataProvider, error) {
	switch source {
	case config.SourceCSV:
		return csvstore.New(cfg.DataDir), nil
	case config.SourceParquet:
		return parquetstore.New(cfg.DataDir), nil
	case config.SourceBinance:
		client, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.BinanceAPIKey,
			SecretKey:  cfg.BinanceSecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.SourceAlpaca:
		client, err := alpacaclient.New(alpacaclient.Config{
			APIKey:    cfg.AlpacaAPIKey,
			APISecret: cfg.AlpacaAPISecret,
			BaseURL:   cfg.AlpacaDataURL,
			Feed:      cfg.AlpacaFeed,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown data source %q", ports.ErrConfigurationError, source)
	}
}
