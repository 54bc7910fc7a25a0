package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"protein-hunter/config"
	"protein-hunter/engine"
	"protein-hunter/models"
	"protein-hunter/notify"
	"protein-hunter/publish"
	"protein-hunter/search"
	"protein-hunter/store"
	"protein-hunter/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	catalogPath := flag.String("catalog", "", "Catalog JSON file to seed before running")
	csvExport := flag.String("csv", cfg.CSVExportPath, "CSV export path for appended offers (optional)")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	strict := flag.Bool("strict", cfg.StrictMode, "Fail the run when no offers are collected")
	variant := flag.String("variant", cfg.ForcedVariant, "Force marketing variant A or B (default: by weekday)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	cfg.DatabasePath = *dbPath
	cfg.CSVExportPath = *csvExport
	cfg.MetricsAddr = *metricsAddr
	cfg.StrictMode = *strict
	cfg.ForcedVariant = *variant
	cfg.Verbose = *verbose

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	tracer, err := tracing.Init(tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		ServiceName: "protein-hunter",
	})
	if err != nil {
		slog.Error("initialising tracing", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown failed", slog.Any("error", err))
		}
		cancel()
	}()

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("opening database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("close database", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *catalogPath != "" {
		if err := seedCatalog(ctx, db, *catalogPath); err != nil {
			slog.Error("seeding catalog", slog.Any("error", err))
			os.Exit(1)
		}
	}

	metrics := engine.NewMetrics()
	searcher, err := search.NewClient(cfg.Search, metrics.SearchMetrics(), logger)
	if err != nil {
		slog.Error("initialising search client", slog.Any("error", err))
		os.Exit(1)
	}
	notifier := notify.NewWebhook(cfg.WebhookURL, cfg.NotifyMaxLen, logger)
	publisher := publish.NewClient(cfg.Publisher, logger)

	var exporter engine.Exporter
	if cfg.CSVExportPath != "" {
		csvWriter, err := store.NewCSVWriter(cfg.CSVExportPath)
		if err != nil {
			slog.Error("creating csv export", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := csvWriter.Close(); err != nil {
				slog.Error("close csv export", slog.Any("error", err))
			}
		}()
		exporter = csvWriter
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	eng := engine.New(cfg, engine.Deps{
		Store:     db,
		Searcher:  searcher,
		Notifier:  notifier,
		Publisher: publisher,
		Exporter:  exporter,
	}, metrics, tracer, logger)

	result, err := eng.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := metricsServer.Shutdown(shutdownCtx); serr != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", serr))
		}
		cancel()
	}

	if err != nil {
		slog.Error("run failed", slog.Any("error", err))
		notifyFailure(notifier, err)
		os.Exit(1)
	}

	printSummary(result)
}

// seedCatalog upserts catalog entries from a JSON array file.
func seedCatalog(ctx context.Context, db *store.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}
	var entries []models.CatalogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse catalog file: %w", err)
	}
	if err := db.SeedCatalog(ctx, entries); err != nil {
		return err
	}
	slog.Info("catalog seeded", slog.Int("entries", len(entries)), slog.String("path", path))
	return nil
}

// notifyFailure sends a best-effort failure alert with a truncated
// error message. Uses a fresh context: the run context may already be
// cancelled.
func notifyFailure(notifier *notify.Webhook, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	msg := runErr.Error()
	if r := []rune(msg); len(r) > 1500 {
		msg = string(r[:1500])
	}
	if err := notifier.Notify(ctx, "【障害】デイリー実行が失敗しました", []string{msg}); err != nil {
		slog.Error("failure notification failed", slog.Any("error", err))
	}
}

func printSummary(result *models.RunResult) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Run complete")
	fmt.Printf("  Date:            %s\n", result.Date)
	fmt.Printf("  Appended rows:   %d\n", result.AppendedRows)
	fmt.Printf("  Notifications:   %d\n", result.Notifications)
	fmt.Printf("  Blog published:  %v\n", result.Published)
	fmt.Printf("  Skipped entries: %d\n", result.SkippedEntries)
	fmt.Printf("  Errors:          %d\n", len(result.Errors))
	fmt.Printf("  Duration:        %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Println(separator)
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
