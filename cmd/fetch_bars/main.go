package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"backtestEngine/config"
	"backtestEngine/internal/cli"
	"backtestEngine/internal/domain"
)

func main() {
	source := flag.String("source", config.SourceBinance, "binance or alpaca")
	symbols := flag.String("symbols", "BTCUSDT,ETHUSDT", "comma separated symbols")
	end := flag.String("end", time.Now().UTC().Format(domain.DateLayout), "last day (YYYY-MM-DD)")
	start := flag.String("start", time.Now().UTC().AddDate(0, -3, 0).Format(domain.DateLayout), "first day (YYYY-MM-DD)")
	timeframe := flag.String("timeframe", string(domain.TimeframeDaily), "1d or 1h")
	out := flag.String("out", "", "output directory (default DATA_DIR)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// 2. Download into Parquet and CSV
	report, err := cli.RunFetch(ctx, cfg, cli.FetchOptions{
		Source:    *source,
		Symbols:   strings.Split(*symbols, ","),
		Start:     *start,
		End:       *end,
		Timeframe: *timeframe,
		Formats:   []string{"parquet", "csv"},
		OutDir:    *out,
	})
	if report != nil {
		for symbol, n := range report.Bars {
			fmt.Printf("%s: %d bars\n", symbol, n)
		}
		for symbol, ferr := range report.Failed {
			fmt.Printf("%s: failed: %v\n", symbol, ferr)
		}
	}
	if err != nil {
		log.Fatalf("Error fetching bars: %v", err)
	}
}
