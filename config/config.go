package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"backtestEngine/internal/adapters/logger"
	"backtestEngine/internal/strategy/backtesting"
)

// Supported DATA_SOURCE values.
const (
	SourceCSV     = "csv"
	SourceParquet = "parquet"
	SourceBinance = "binance"
	SourceAlpaca  = "alpaca"
)

// Config holds all application configuration.
type Config struct {
	// Market data
	DataSource string
	DataDir    string

	// Binance API (klines are public; keys only raise rate limits)
	BinanceAPIKey    string
	BinanceSecretKey string
	IsTestnet        bool

	// Alpaca market data
	AlpacaAPIKey    string
	AlpacaAPISecret string
	AlpacaDataURL   string
	AlpacaFeed      string

	// Simulation
	StartingCapital decimal.Decimal
	CommissionRate  decimal.Decimal
	SlippageRate    decimal.Decimal
	RiskFreeRate    float64 // annual, e.g. 0.04 for 4%

	// Parameter sweeps
	SweepWorkers int

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // text, json or logrus
}

// LoadConfig loads configuration from environment variables, after applying
// envFiles (default ".env"). A missing default .env is not an error; a missing
// file named explicitly is.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("loading env files %v: %w", envFiles, err)
	}

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.DataSource = strings.ToLower(getEnv("DATA_SOURCE", SourceCSV))
	switch cfg.DataSource {
	case SourceCSV, SourceParquet, SourceBinance, SourceAlpaca:
	default:
		errs = append(errs, fmt.Sprintf("DATA_SOURCE must be one of csv, parquet, binance, alpaca (got %q)", cfg.DataSource))
	}
	cfg.DataDir = getEnv("DATA_DIR", "./data")

	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	cfg.AlpacaAPIKey = getEnv("ALPACA_API_KEY", "")
	cfg.AlpacaAPISecret = getEnv("ALPACA_API_SECRET", "")
	cfg.AlpacaDataURL = getEnv("ALPACA_DATA_URL", "")
	cfg.AlpacaFeed = getEnv("ALPACA_FEED", "iex")
	if cfg.DataSource == SourceAlpaca && (cfg.AlpacaAPIKey == "" || cfg.AlpacaAPISecret == "") {
		errs = append(errs, "ALPACA_API_KEY and ALPACA_API_SECRET must be set when DATA_SOURCE=alpaca")
	}

	defaults := backtesting.DefaultConfig()
	cfg.StartingCapital, err = getEnvAsDecimal("STARTING_CAPITAL", defaults.StartingCapital.String())
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STARTING_CAPITAL: %v", err))
	} else if !cfg.StartingCapital.IsPositive() {
		errs = append(errs, "STARTING_CAPITAL must be positive")
	}

	one := decimal.NewFromInt(1)
	cfg.CommissionRate, err = getEnvAsDecimal("COMMISSION_RATE", defaults.CommissionRate.String())
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COMMISSION_RATE: %v", err))
	} else if cfg.CommissionRate.IsNegative() || cfg.CommissionRate.GreaterThanOrEqual(one) {
		errs = append(errs, "COMMISSION_RATE must be in [0, 1)")
	}

	cfg.SlippageRate, err = getEnvAsDecimal("SLIPPAGE_RATE", defaults.SlippageRate.String())
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SLIPPAGE_RATE: %v", err))
	} else if cfg.SlippageRate.IsNegative() || cfg.SlippageRate.GreaterThanOrEqual(one) {
		errs = append(errs, "SLIPPAGE_RATE must be in [0, 1)")
	}

	cfg.RiskFreeRate, err = getEnvAsFloatRequired("RISK_FREE_RATE", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_FREE_RATE: %v", err))
	}

	cfg.SweepWorkers, err = getEnvAsIntRequired("SWEEP_WORKERS", 4)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SWEEP_WORKERS: %v", err))
	} else if cfg.SweepWorkers <= 0 {
		errs = append(errs, "SWEEP_WORKERS must be positive")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/backtests.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// EngineConfig returns the simulation parameters for a backtesting.Engine.
func (c *Config) EngineConfig() backtesting.Config {
	return backtesting.Config{
		StartingCapital: c.StartingCapital,
		CommissionRate:  c.CommissionRate,
		SlippageRate:    c.SlippageRate,
		RiskFreeRate:    c.RiskFreeRate,
	}
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsDecimal(key, defaultValue string) (decimal.Decimal, error) {
	valueStr := getEnv(key, defaultValue)
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
