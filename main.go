package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"marketbrain/internal/api"
	"marketbrain/internal/brain"
	"marketbrain/internal/config"
	"marketbrain/internal/metrics"
	"marketbrain/internal/model"
	"marketbrain/internal/registry"
)

const (
	shutdownTimeout = 10 * time.Second
	errTimedOut     = "timed out"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	reg := registry.FromConfig(cfg, registry.Builtin(), logger)
	brainCfg := brain.Config{
		EnableCaching: cfg.EnableCaching,
		CacheTTL:      cfg.CacheTTL(),
	}
	b := brain.New(reg, brainCfg,
		brain.WithLogger(logger),
		brain.WithMetrics(metrics.New(prometheus.DefaultRegisterer)))
	defer b.Close()

	// Cancel on interrupt so both modes shut down cleanly
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		if err := serve(ctx, cfg, b, logger); err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	defer cancel()

	fmt.Println("Fetching quotes from all configured providers...")
	fmt.Println("================================================")
	printQuotes(os.Stdout, cfg.Symbols, fetchQuotes(fetchCtx, b, cfg.Symbols))
	fmt.Println("================================================")
}

// fetchQuotes waits for the batch until ctx expires. On expiry every symbol
// is reported as timed out and the provider calls are left to finish.
func fetchQuotes(ctx context.Context, b *brain.Brain, symbols []string) map[string]*brain.Result[*model.Quote] {
	results, err := brain.Await(ctx, func(ctx context.Context) map[string]*brain.Result[*model.Quote] {
		return b.GetMultipleQuotes(ctx, symbols)
	})
	if err != nil {
		slog.Warn("quote fetch timed out", "symbols", symbols, "error", err)
		results = make(map[string]*brain.Result[*model.Quote], len(symbols))
		for _, symbol := range symbols {
			results[symbol] = &brain.Result[*model.Quote]{Error: errTimedOut}
		}
	}
	return results
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func serve(ctx context.Context, cfg *config.Config, b *brain.Brain, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(b, prometheus.DefaultGatherer, cfg.RequestTimeout(), logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "providers", b.GetAvailableProviders())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// printQuotes writes one line per symbol in the order requested.
func printQuotes(w io.Writer, symbols []string, results map[string]*brain.Result[*model.Quote]) {
	for _, symbol := range symbols {
		res, ok := results[symbol]
		switch {
		case !ok:
			fmt.Fprintf(w, "%s: ERROR - %s\n", symbol, brain.ErrNoDataReturned)
		case !res.Success || res.Data == nil:
			msg := res.Error
			if msg == "" {
				msg = brain.ErrNoDataReturned
			}
			fmt.Fprintf(w, "%s: ERROR - %s\n", symbol, msg)
		default:
			fmt.Fprintf(w, "%s: $%s (coverage %.0f%%, providers %s)\n",
				symbol, res.Data.Price.StringFixed(2), res.CoveragePercentage, strings.Join(res.ProvidersUsed, ","))
		}
	}
}
