package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"desapego-pix/internal/clock"
	"desapego-pix/internal/config"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/domain/ports/adapter"
	"desapego-pix/internal/domain/ports/repository"
	payAdapters "desapego-pix/internal/infra/adapters/payment"
	"desapego-pix/internal/infra/api"
	"desapego-pix/internal/infra/db/memory"
	pg "desapego-pix/internal/infra/db/postgres"
	"desapego-pix/internal/infra/logging"
	"desapego-pix/internal/infra/metrics"
	"desapego-pix/internal/infra/ratelimit"
	red "desapego-pix/internal/infra/redis"
	"desapego-pix/internal/infra/sched"
	"desapego-pix/internal/infra/worker"
	"desapego-pix/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "in-memory store and sandbox processor; no Postgres or Redis needed")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] in-memory listings, sandbox payment processor")
	}

	metrics.MustRegister(nil)
	clk := clock.New()
	plans := model.DefaultPlanCatalog()

	// ---- Storage ----
	var (
		listings repository.ListingRepository
		tm       repository.TransactionManager
	)
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		listings = pg.NewListingRepo(pool)
		tm = pg.NewTxManager(pool)
		go func() {
			t := time.NewTicker(15 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					metrics.ObserveDBPool(pool.Stat())
				}
			}
		}()
	} else {
		listings = memory.NewListingRepo()
		tm = memory.NewTxManager()
	}

	// ---- Redis (optional) ----
	var (
		limiter api.Limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.MaxKeys)
		locker  sched.Locker
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer rc.Close()
		limiter = red.NewRateLimiter(rc, "desapego", cfg.RateLimit.Requests, cfg.RateLimit.Window)
		locker = red.NewLocker(rc)
	}

	// ---- Payment processor ----
	var gateway adapter.PaymentGateway
	mp := cfg.Payment.MercadoPago
	if cfg.Runtime.Dev && mp.AccessToken == "" {
		gateway = payAdapters.NewSandboxGateway(logger)
	} else {
		g, err := payAdapters.NewMercadoPagoGateway(mp.AccessToken, mp.BaseURL, mp.NotificationURL, mp.Timeout, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("mercadopago gateway")
		}
		if !g.Configured() {
			logger.Error().Msg("payment.mercadopago.access_token is empty: PIX charges will be refused until it is set")
		}
		gateway = g
	}
	metrics.SetBuildInfo(version, commit, gateway.Name())

	// ---- Use cases ----
	listingUC := usecase.NewListingUseCase(listings, plans, tm, clk, logger)
	paymentUC := usecase.NewPaymentUseCase(listings, plans, gateway, usecase.PaymentOptions{
		ChargeTimeout:     mp.Timeout,
		DefaultPayerEmail: mp.DefaultPayerEmail,
		Dev:               cfg.Runtime.Dev,
	}, logger)
	reconcileUC := usecase.NewReconcileUseCase(listings, plans, gateway, clk, logger)

	// ---- Sweeper ----
	pool := worker.NewPool(cfg.Sweeper.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()
	if !cfg.Sweeper.Disabled {
		sweeper := sched.NewPaymentReconciler(listings, gateway, reconcileUC, pool, locker, clk, sched.ReconcilerOptions{
			Interval:   cfg.Sweeper.Interval,
			StaleAfter: cfg.Sweeper.StaleAfter,
			MaxAge:     cfg.Sweeper.MaxAge,
			LockTTL:    cfg.Sweeper.LockTTL,
		}, logger)
		go sweeper.Start(ctx)
	}

	// ---- HTTP ----
	srv := api.NewServer(listingUC, paymentUC, reconcileUC, plans, limiter, api.Options{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		WebhookTimeout: cfg.HTTP.WebhookTimeout,
		WebhookSecret:  mp.WebhookSecret,
		Dev:            cfg.Runtime.Dev,
	}, logger)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Router(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("gateway", gateway.Name()).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
}
