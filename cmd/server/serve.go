package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/api"
	"github.com/shubhsaxena/directory-assistant/internal/kafka"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Answer questions over HTTP and, when enabled, Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(a)
		},
	}
}

func serve(a *app) error {
	cfg, logger := a.cfg, a.logger

	logger.Info("starting directory assistant",
		zap.String("service", cfg.Observability.ServiceName),
		zap.String("store", cfg.Store.Driver),
	)

	tracerShutdown, err := observability.InitTracer(cfg.Observability.ServiceName)
	if err != nil {
		logger.Warn("tracing initialization failed, continuing without tracing", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := a.openDirectory(ctx)
	if err != nil {
		return err
	}

	chClient := a.openAnalytics(ctx)
	var analytics observability.AnalyticsWriter
	var stats api.IntentStats
	if chClient != nil {
		analytics = chClient
		stats = chClient
	}

	orch, err := a.buildOrchestrator(b.dir, analytics)
	if err != nil {
		return err
	}

	healthHandler := api.NewHealthHandler(logger)
	if b.health != nil {
		healthHandler.Register("store", b.health)
	}
	if b.index != nil {
		healthHandler.RegisterIndex(b.index)
	}
	if b.cache != nil {
		healthHandler.RegisterOptional("redis", b.cache)
	}
	if chClient != nil {
		healthHandler.RegisterOptional("clickhouse", chClient)
	}

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		consumer = kafka.NewConsumer(cfg.Kafka, orch.Ask, logger)
		if err := consumer.Start(ctx); err != nil {
			logger.Warn("kafka consumer start failed, questions are served over HTTP only", zap.Error(err))
			consumer = nil
		} else {
			healthHandler.RegisterOptional("kafka", consumer)
		}
	}

	handler := api.NewHandler(orch, stats, logger)
	router := api.NewRouter(handler, healthHandler, cfg.Server.MaxConcurrent, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.Error("kafka consumer shutdown error", zap.Error(err))
		}
	}

	cancel()

	// Pending analytics writes finish before their sinks close.
	orch.Wait()

	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}
