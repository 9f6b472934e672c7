package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"qrattend/internal/api"
	"qrattend/internal/attendance"
	"qrattend/internal/config"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/logging"
	"qrattend/internal/metrics"
	"qrattend/internal/realtime"
	"qrattend/internal/secret"
	"qrattend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

const limiterSweepInterval = time.Minute

// newMetrics returns the registry served on /metrics with the app collectors
// and the Go runtime and process collectors registered.
func newMetrics() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, metrics.New(reg)
}

func run(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, m := newMetrics()

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	registry := realtime.NewRegistry(logger, m)
	hub := realtime.NewHub(registry, logger, m)

	rotator := secret.NewRotator(secret.RandomHex(cfg.SecretBytes), secret.NewQRRenderer(cfg.QRSize), hub, logger, m)
	if _, err := rotator.Rotate(ctx); err != nil {
		return err
	}

	svc := attendance.NewService(st, rotator, hub, logger, m)

	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()
	sched := secret.NewScheduler(rotator, cfg.RotationInterval, logger)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(schedCtx)
	}()

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		limiter.RunSweeper(schedCtx, limiterSweepInterval)
	}()

	router := api.NewRouter(api.Deps{
		Service:         svc,
		Issuer:          rotator,
		Store:           st,
		WebSocket:       realtime.NewHandler(registry, cfg.WSSendBuffer, logger),
		Gatherer:        reg,
		Log:             logger,
		Limiter:         limiter,
		JWTSigningKey:   cfg.JWTSigningKey,
		JWTIssuer:       cfg.JWTIssuer,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.Duration("rotation_interval", cfg.RotationInterval))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	cancelSched()
	<-schedDone
	<-sweepDone
	registry.CloseAll()

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}
