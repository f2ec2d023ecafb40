package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coupon-service/config"
	"coupon-service/internal/delivery/http/middleware"
	v1 "coupon-service/internal/delivery/http/v1"
	"coupon-service/internal/domain"
	"coupon-service/internal/infrastructure/cache"
	"coupon-service/internal/repository/memory"
	pgrepo "coupon-service/internal/repository/postgres"
	"coupon-service/internal/usecase"
	pkgcache "coupon-service/pkg/cache"
	"coupon-service/pkg/logger"
	"coupon-service/pkg/metrics"

	"github.com/NYTimes/gziphandler"
)

const serviceName = "coupon-service"

func main() {
	cfg := config.LoadConfig()

	// Initialize Logger
	logger.Init(cfg.Env, cfg.LogLevel)
	log := logger.Get()

	ctx := context.Background()

	// --- Storage ---
	var (
		couponRepo domain.CouponRepository
		dbPinger   v1.Pinger
		closers    []func()
	)
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		pgxPool, err := pgrepo.NewPgxPool(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		closers = append(closers, pgxPool.Close)
		log.Info().Msg("Successfully connected to PostgreSQL via pgx")

		if cfg.DBAutoMigrate {
			if err := pgrepo.EnsureSchema(ctx, pgxPool); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply database schema")
			}
		}
		couponRepo = pgrepo.NewCouponRepository(pgxPool)
		dbPinger = pgxPool
	default:
		log.Warn().Msg("Using in-memory coupon storage")
		couponRepo = memory.NewCouponRepository()
	}

	// --- Cache ---
	var couponCache pkgcache.CacheService
	switch cfg.CacheDriver {
	case config.CacheDriverRedis:
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		couponCache = cache.NewRedisCache(redisClient, cfg.RedisKeyPrefix)
	case config.CacheDriverMemory:
		// Cleanup every 2x TTL
		couponCache = cache.NewMemoryCache(cfg.CacheCouponTTL, 2*cfg.CacheCouponTTL)
	}

	opts := []usecase.CouponOption{}
	if couponCache != nil {
		opts = append(opts, usecase.WithCache(couponCache, cfg.CacheCouponTTL))
	}

	// --- Modules Initialization ---
	couponUC := usecase.NewCouponUsecase(couponRepo, opts...)
	couponHandler := v1.NewCouponHandler(couponUC, cfg.MaxRequestBodyKB<<10)
	healthHandler := v1.NewHealthHandler(dbPinger)

	mux := http.NewServeMux()
	couponHandler.RegisterRoutes(mux)
	healthHandler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	trustedProxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid trusted proxy configuration")
	}
	rateLimiter := middleware.NewRateLimiter(ctx, cfg)

	// Metrics must sit directly on the mux to see the matched route pattern.
	handler := middleware.Metrics(mux)
	handler = middleware.Timeout(cfg.RequestTimeout)(handler)
	handler = middleware.NewCORSMiddleware(cfg)(handler)
	handler = middleware.RequestLogger(handler)
	handler = rateLimiter.Middleware()(handler)
	handler = middleware.ClientIP(trustedProxies)(handler)
	handler = gziphandler.GzipHandler(handler)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful Shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.ServiceStart(serviceName, cfg.Port)

	// Wait for interrupt signal via channel
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	rateLimiter.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}

	logger.ServiceStop(serviceName)
}
