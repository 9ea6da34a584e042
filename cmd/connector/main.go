package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mohbadar/pay-connector/internal/bootstrap"
	"github.com/mohbadar/pay-connector/internal/events"
	"github.com/mohbadar/pay-connector/internal/executor"
	"github.com/mohbadar/pay-connector/internal/gateway"
	"github.com/mohbadar/pay-connector/internal/gateway/epdq"
	"github.com/mohbadar/pay-connector/internal/gateway/sandbox"
	"github.com/mohbadar/pay-connector/internal/gateway/stripe"
	"github.com/mohbadar/pay-connector/internal/gateway/worldpay"
	infraRedis "github.com/mohbadar/pay-connector/internal/infrastructure/redis"
	"github.com/mohbadar/pay-connector/internal/queue"
	"github.com/mohbadar/pay-connector/internal/repository/postgres"
	"github.com/mohbadar/pay-connector/internal/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "pay-connector", "connector")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()
	cfg := app.Config

	// --- Repositories ---
	chargeRepo := postgres.NewChargeRepository(app.Pool)
	refundRepo := postgres.NewRefundRepository(app.Pool)
	accountRepo := postgres.NewGatewayAccountRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Gateway providers ---
	gatewayClient := gateway.NewClient(cfg.Gateways.Timeout, app.Logger, app.Metrics)
	registry := gateway.NewRegistry(
		sandbox.New(),
		worldpay.New(gatewayClient, cfg.Gateways.WorldpayURL),
		epdq.New(gatewayClient, cfg.Gateways.EpdqURL),
		stripe.New(gatewayClient, cfg.Gateways.StripeURL, cfg.Gateways.StripeAuthToken),
	)

	// --- Event plumbing ---
	taskQueue := queue.NewQueue(app.Metrics.QueueDepth)
	publisher := infraRedis.NewStreamPublisher(app.Redis, cfg.Redis.Stream)
	emitter := events.NewEmitter(
		taskQueue,
		events.NewFactory(chargeRepo, refundRepo),
		publisher,
		app.Logger,
		app.Metrics,
		cfg.Queue.BaseDelay,
		cfg.Queue.MaxAttempts,
	)

	// --- Operation pipeline and services ---
	exec := executor.New(cfg.Executor.PoolSize, cfg.Executor.QueueSize, cfg.Executor.WaitTimeout, app.Logger, app.Metrics.ExecutorInFlight)
	pipeline := service.NewPipeline(chargeRepo, accountRepo, registry, txManager, taskQueue, exec, app.Logger, app.Metrics)

	captureSvc := service.NewCaptureService(pipeline, chargeRepo, txManager, app.Logger)
	cancelSvc := service.NewCancelService(pipeline, chargeRepo, txManager, app.Logger)
	notificationSvc := service.NewNotificationService(chargeRepo, refundRepo, accountRepo, registry, pipeline, txManager, taskQueue, app.Logger)

	captureProcess := service.NewCaptureProcess(
		captureSvc, chargeRepo, pipeline, txManager, app.Logger, app.Metrics,
		cfg.Capture.Interval, cfg.Capture.BatchSize, cfg.Capture.MaxRetries,
	)
	expiryProcess := service.NewExpiryProcess(
		chargeRepo, cancelSvc, pipeline, txManager, app.Logger, app.Metrics,
		cfg.Expiry.Interval, cfg.Expiry.Threshold, cfg.Expiry.BatchSize,
	)

	// --- Operational HTTP listener ---
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := app.Pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if cfg.Observability.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler())
	}

	// Providers push status callbacks here; everything else drives the
	// connector through the service layer.
	router.Post("/v1/notifications/{provider}", func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		providerName := chi.URLParam(r, "provider")

		// Each provider names its own signature header; most carry
		// authenticity inside the payload.
		var signature string
		if p, _, err := registry.Get(providerName); err == nil {
			if header := p.SignatureHeader(); header != "" {
				signature = r.Header.Get(header)
			}
		}

		if err := notificationSvc.Handle(r.Context(), providerName, payload, signature); err != nil {
			app.Logger.Warn().Err(err).Str("provider", providerName).Msg("notification rejected")
			w.WriteHeader(http.StatusForbidden)
			return
		}
		// Providers only need acknowledgement.
		w.Write([]byte("[OK]"))
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. State-transition event emitter.
	g.Go(func() error {
		return emitter.Run(gCtx)
	})

	// 2. Background capture process.
	g.Go(func() error {
		return captureProcess.Run(gCtx)
	})

	// 3. Expiry sweep.
	g.Go(func() error {
		return expiryProcess.Run(gCtx)
	})

	// 4. Operational HTTP listener.
	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting operational HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 5. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down connector...")
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Connector error")
	}
	app.Logger.Info().Msg("Connector exited")
}
