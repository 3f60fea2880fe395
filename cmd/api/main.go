package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cimillas/ticket-inventory/internal/app"
	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/config"
	"github.com/cimillas/ticket-inventory/internal/notify"
	"github.com/cimillas/ticket-inventory/internal/scancode"
	"github.com/cimillas/ticket-inventory/internal/storage/postgres"
	"github.com/cimillas/ticket-inventory/internal/telemetry"
	transporthttp "github.com/cimillas/ticket-inventory/internal/transport/http"
	"github.com/cimillas/ticket-inventory/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	serviceName     = "ticket-inventory"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(stopCtx, serviceName, cfg.OTLPEndpoint, cfg.OTLPInsecure, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	}()

	startupCtx, cancel := context.WithTimeout(stopCtx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	applied, err := migrations.Apply(startupCtx, pool)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "files", applied)
	}

	codes, err := scancode.NewSigner([]byte(cfg.ScanCodeKey))
	if err != nil {
		return fmt.Errorf("scan code signer: %w", err)
	}

	dispatcher := notify.NewDispatcher(notify.Fanout{
		notify.LogSink{Logger: logger},
		notify.NewOutboxSink(postgres.NewOutboxRepository(pool)),
	}, cfg.EventQueueSize, logger)

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithHoldTTL(cfg.HoldTTL),
		app.WithRetry(cfg.MaxAttempts, cfg.RetryBackoff),
		app.WithPublisher(dispatcher),
	}

	clk := clock.NewSystem()
	reservationRepo := postgres.NewReservationRepository(pool)
	reservationSvc := app.NewReservationService(reservationRepo, reservationRepo, codes, clk, opts...)
	checkInSvc := app.NewCheckInService(reservationRepo, codes, clk, opts...)
	adminSvc := app.NewAdminService(postgres.NewAdminRepository(pool), clk, opts...)
	sweeper := app.NewSweeper(reservationRepo, reservationSvc, clk, app.SweeperConfig{
		Interval:  cfg.SweepInterval,
		BatchSize: cfg.SweepBatchSize,
	}, opts...)

	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set, admin endpoints are disabled")
	}

	mux := transporthttp.NewRouter(transporthttp.Services{
		Reservations: reservationSvc,
		CheckIn:      checkInSvc,
		Admin:        adminSvc,
		AdminToken:   cfg.AdminToken,
		Ready:        pool.Ping,
	})
	handler := otelhttp.NewHandler(
		transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger),
		serviceName,
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		dispatcher.Run(workerCtx)
	}()
	go func() {
		defer workers.Done()
		sweeper.Run(workerCtx)
	}()

	logger.Info("api listening", "port", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "error", err)
	}

	// Stop the sweeper and flush queued events once no request can publish.
	stopWorkers()
	workers.Wait()
	if n := dispatcher.Dropped(); n > 0 {
		logger.Warn("events dropped while queue was full", "count", n)
	}
	logger.Info("server stopped")
	return nil
}
