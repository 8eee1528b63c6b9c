package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/23skdu/reduced/internal/bench"
	"github.com/23skdu/reduced/internal/config"
	rerrors "github.com/23skdu/reduced/internal/errors"
	"github.com/23skdu/reduced/internal/kernel/complexsum"
	"github.com/23skdu/reduced/internal/logging"
	"github.com/23skdu/reduced/internal/simd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "reduced: %v\n", err)
		}
		os.Exit(1)
	}
}

// run loads the configuration, applies command line overrides and benchmarks
// the complex_sum_soa kernel once.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("reduced", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env-file", ".env", "Optional dotenv file read before the environment")
	size := fs.Int("size", 0, "Problem size N (overrides REDUCED_SIZE)")
	workers := fs.Int("workers", -1, "Reduction workers, 0 for GOMAXPROCS (overrides REDUCED_WORKERS)")
	iterations := fs.Int("iterations", 0, "Timed runs (overrides REDUCED_ITERATIONS)")
	fill := fs.String("fill", "", "Fill profile: uniform or ramp (overrides REDUCED_FILL)")
	simdName := fs.String("simd", "", "Sum implementation, auto or one of the dispatch names (overrides REDUCED_SIMD)")
	metricsAddr := fs.String("metrics", "", "Address to serve Prometheus metrics on (overrides REDUCED_METRICS_ADDR)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return rerrors.WrapConfigurationError(err, "Load", "invalid configuration")
	}
	applyFlags(&cfg, *size, *workers, *iterations, *fill, *simdName, *metricsAddr)
	if err := config.Validate(&cfg); err != nil {
		return rerrors.WrapConfigurationError(err, "Validate", "invalid command line")
	}

	logger, err := logging.NewLogger(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Output: stderr})
	if err != nil {
		return rerrors.WrapConfigurationError(err, "NewLogger", "invalid logging configuration")
	}

	if err := simd.Use(cfg.SIMD); err != nil {
		return rerrors.WrapConfigurationError(err, "Use", "invalid sum implementation").
			WithContext("available", simd.Implementations())
	}
	features := simd.GetCPUFeatures()
	logger.Info().
		Str("vendor", features.Vendor).
		Str("simd", simd.GetImplementation()).
		Int("size", cfg.Size).
		Int("workers", cfg.Workers).
		Str("fill", cfg.Fill).
		Msg("Reduced benchmark starting")

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, logger)
		defer shutdownMetricsServer(srv, logger)
	}

	fillProfile, err := complexsum.ParseFill(cfg.Fill)
	if err != nil {
		return rerrors.WrapConfigurationError(err, "ParseFill", "invalid fill profile")
	}
	k, err := complexsum.New(
		complexsum.WithSize(cfg.Size),
		complexsum.WithFill(fillProfile),
		complexsum.WithWorkers(cfg.Workers),
		complexsum.WithMinChunk(cfg.ChunkSize),
		complexsum.WithMemoryLimit(cfg.MaxMemory),
		complexsum.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	res, err := bench.Run(ctx, k, bench.Options{
		Iterations: cfg.Iterations,
		QuiesceGC:  cfg.QuiesceGC,
		Logger:     &logger,
	})
	if len(res.Times) > 0 {
		bench.Report(stdout, res)
	}
	return err
}

func applyFlags(cfg *config.Config, size, workers, iterations int, fill, simdName, metricsAddr string) {
	if size != 0 {
		cfg.Size = size
	}
	if workers >= 0 {
		cfg.Workers = workers
	}
	if iterations != 0 {
		cfg.Iterations = iterations
	}
	if fill != "" {
		cfg.Fill = fill
	}
	if simdName != "" {
		cfg.SIMD = simdName
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
}

func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("address", addr).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("address", addr).Msg("Failed to start metrics server")
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Metrics server shutdown")
	}
}
