package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fliptrack/fliptrack/config"
	"github.com/fliptrack/fliptrack/hibid"
	"github.com/fliptrack/fliptrack/inventory"
	"github.com/fliptrack/fliptrack/models"
	"github.com/fliptrack/fliptrack/pipeline"
)

func main() {
	defaultCfg := config.DefaultConfig()
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("FLIPTRACK_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid FLIPTRACK_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("FLIPTRACK_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("FLIPTRACK_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	catalogURL := flag.String("catalog-url", "", "HiBid catalog URL to scrape (required)")
	lotNumbers := flag.String("lots", "", "Comma-separated lot numbers to scrape (default: every lot)")
	maxPages := flag.Int("pages", pagesDefault, "Maximum catalog pages to crawl")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per fetch")
	pageDelayMs := flag.Int("page-delay", int(defaultCfg.PageDelay/time.Millisecond), "Delay between catalog pages (milliseconds)")
	validatorCache := flag.Int("validator-cache", defaultCfg.ValidatorCacheSize, "Conditional-request validator cache size (0 disables)")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	defaultPremium := flag.String("default-premium", "", "Buyer premium percent assumed when a lot/catalog has none")
	defaultTaxRate := flag.String("default-tax", "", "Tax percent applied when estimating all-in cost")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if *catalogURL == "" {
		fmt.Fprintln(os.Stderr, "missing required -catalog-url")
		flag.Usage()
		os.Exit(1)
	}

	cfg := buildConfigFromFlags(*maxPages, *maxRetries, *pageDelayMs, *validatorCache, *outputFile, *outputFormat, *metricsAddr, *verbose)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	targets := splitLotNumbers(*lotNumbers)
	slog.Info("starting scrape",
		slog.String("catalog_url", *catalogURL),
		slog.Int("targets", len(targets)),
		slog.Int("pages", cfg.MaxPages),
	)

	s, err := hibid.New(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}
	s.SetProgress(func(ev hibid.Progress) {
		slog.Debug("progress",
			slog.String("phase", string(ev.Phase)),
			slog.Int("page", ev.Page),
			slog.Int("found", ev.Found),
			slog.Int("total", ev.Total),
			slog.String("lot", ev.LotNumber),
		)
	})

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p, err := pipeline.NewPipeline(writer, cfg)
	if err != nil {
		slog.Error("initialising pipeline", slog.Any("error", err))
		os.Exit(1)
	}
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	catalog, err := s.ScrapeCatalog(ctx, *catalogURL, targets)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}

	for _, lot := range catalog.Lots {
		if err := p.Process(lot); err != nil {
			slog.Error("pipeline rejected lot", slog.String("lot", lot.LotNumber), slog.Any("error", err))
			os.Exit(1)
		}
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	settings := buildSettings(*defaultPremium, *defaultTaxRate)
	printSummary(catalog, settings, time.Since(startTime), cfg.OutputFile, p.GetMetrics())
}

func buildConfigFromFlags(maxPages, maxRetries, pageDelayMs, validatorCache int, outputFile, outputFormat, metricsAddr string, verbose bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.MaxPages = maxPages
	cfg.MaxRetries = maxRetries
	cfg.PageDelay = time.Duration(pageDelayMs) * time.Millisecond
	cfg.ValidatorCacheSize = validatorCache
	cfg.OutputFile = outputFile
	cfg.OutputFormat = strings.ToLower(outputFormat)
	cfg.MetricsAddr = metricsAddr
	cfg.Verbose = verbose
	return cfg
}

func splitLotNumbers(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func buildSettings(defaultPremium, defaultTaxRate string) inventory.Settings {
	values := make(map[string]string)
	if defaultPremium != "" {
		values[inventory.SettingDefaultBuyerPremium] = defaultPremium
	}
	if defaultTaxRate != "" {
		values[inventory.SettingDefaultTaxRate] = defaultTaxRate
	}
	return inventory.NewMapSettings(values)
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(catalog *models.Catalog, settings inventory.Settings, duration time.Duration, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	if catalog.Title != "" {
		fmt.Printf("  Catalog:       %s\n", catalog.Title)
	}
	if catalog.EndTimeText != "" {
		fmt.Printf("  Ends:          %s\n", catalog.EndTimeText)
	}

	totalLots := int64(0)
	if processed, ok := metrics["processed_lots"].(int64); ok {
		totalLots = processed
	}
	fmt.Printf("  Lots written:  %d\n", totalLots)

	totalBid := 0
	totalAllIn := 0
	for _, lot := range catalog.Lots {
		totalBid += lot.CurrentBid
		totalAllIn += inventory.LotTotalCost(lot, catalog, settings)
	}
	fmt.Printf("  Total bids:    %s\n", formatCents(totalBid))
	fmt.Printf("  Est. all-in:   %s\n", formatCents(totalAllIn))

	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func formatCents(cents int) string {
	return "$" + strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
