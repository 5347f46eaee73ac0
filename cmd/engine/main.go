package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"ledger_engine/internal/csvio"
	"ledger_engine/internal/processor"
	"ledger_engine/internal/repository/memory"
	"ledger_engine/internal/service"
	"ledger_engine/pkg/crypto"
	"ledger_engine/pkg/metrics"
)

const appName = "ledger_engine"

func main() {
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address while the run is in flight")
	flag.Parse()

	logger := setupLogger().With(
		slog.String("name", appName),
		slog.String("run_id", uuid.NewString()))

	if err := run(context.Background(), logger, flag.Arg(0), *metricsAddr); err != nil {
		logger.Error("Run failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, inputPath, metricsAddr string) error {
	if inputPath == "" {
		return fmt.Errorf("missing input file argument")
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	collector := metrics.NewCollector(logger)
	var metricsServer *http.Server
	if metricsAddr != "" {
		metricsServer = collector.StartMetricsServer(metricsAddr)
	}

	alerts := service.NewAlertService(
		&service.MockEmailSink{},
		service.NewLogWebhookSink(logger),
		3,
		logger,
	)

	clients := memory.NewClientRepository()
	journal := memory.NewOperationStore()
	disputes := memory.NewOperationStore()
	engine := processor.NewEngine(clients, journal, disputes, collector, alerts, logger)

	logger.Info("Replaying operation log", slog.String("input", inputPath))
	if err := engine.Run(ctx, csvio.NewReader(in, logger)); err != nil {
		return err
	}

	if err := writeReport(ctx, logger, clients); err != nil {
		return err
	}

	shutdown(ctx, logger, alerts, collector, metricsServer)
	return nil
}

func writeReport(ctx context.Context, logger *slog.Logger, clients *memory.ClientRepository) error {
	all, err := clients.GetAll(ctx)
	if err != nil {
		return err
	}

	// The report goes to stdout; when a signing key is configured the
	// bytes are captured so the signature covers exactly what was emitted.
	var out io.Writer = os.Stdout
	var buf bytes.Buffer
	signingKey := os.Getenv("LEDGER_SIGNING_KEY")
	if signingKey != "" {
		out = io.MultiWriter(os.Stdout, &buf)
	}

	if err := csvio.NewWriter(out).WriteReport(ctx, all); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if signingKey != "" {
		signer := crypto.NewSigner(signingKey, logger)
		logger.Info("Report signed",
			slog.String("signature", signer.Sign(buf.Bytes())))
	}

	logger.Info("Report written", slog.Int("clients", len(all)))
	return nil
}

func shutdown(
	ctx context.Context,
	logger *slog.Logger,
	alerts *service.AlertService,
	collector *metrics.Collector,
	metricsServer *http.Server,
) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := alerts.Shutdown(shutdownCtx); err != nil {
		logger.Error("Alert service shutdown failed", slog.String("error", err.Error()))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}
	if err := collector.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics collector shutdown failed", slog.String("error", err.Error()))
	}
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	// stdout carries the CSV report, so logs go to stderr.
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}
