package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/barcode"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/blob"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/cache"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/config"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/events"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/httpapi"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/logging"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/metrics"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/pos"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/service"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/store"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/store/memory"
	pgstore "github.com/rfaisal87-commits/pure-gold-erp/internal/store/postgres"
)

const (
	sessionSweepInterval = 5 * time.Minute
	sessionMaxIdle       = 12 * time.Hour
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	log.Logger = logger

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("schema migration failed")
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info().Str("repository", "postgres").Msg("store ready")
	} else {
		repo = memory.NewSeeded(cfg.DefaultBranchID)
		logger.Info().Str("repository", "in-memory").Msg("store ready")
	}

	catalog := cache.CatalogCache(cache.NoopCatalogCache{})
	revoker := cache.SessionRevoker(cache.NewMemoryRevoker())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using noop catalog cache and in-process revocation")
		} else {
			catalog = redisCache
			revoker = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info().Str("cache", "redis").Msg("cache ready")
		}
	} else {
		logger.Info().Str("cache", "noop").Msg("cache ready")
	}

	publisher := events.Publisher(events.NoopPublisher{})
	if brokers := events.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kafka := events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		publisher = kafka
		closers = append(closers, kafka.Close)
		logger.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("events: kafka")
	}

	blobs, err := blob.NewDiskStore(cfg.BlobDir, cfg.BlobBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.BlobDir).Msg("blob directory unavailable")
	}

	m := metrics.New()
	svc := service.New(repo, service.Deps{
		Catalog:      catalog,
		CatalogTTL:   time.Duration(cfg.CatalogCacheTTLSeconds) * time.Second,
		Blobs:        blobs,
		Events:       publisher,
		Metrics:      m,
		Logger:       &logger,
		MerchantName: cfg.MerchantName,
	}, cfg.DefaultBranchID)
	if _, err := svc.EnsureDefaultBranch(ctx); err != nil {
		logger.Warn().Err(err).Str("branch_id", cfg.DefaultBranchID).Msg("default branch check failed")
	}

	sessions := pos.NewRegistry()
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo, revoker, logger)
	api := httpapi.New(svc, auth, sessions, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Metrics:       m,
		Barcodes:      barcode.NewImageDecoder(),
		Blobs:         blobs.Handler(),
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweepSessions(sweepCtx, sessions, sessionSweepInterval, sessionMaxIdle, logger)

	go func() {
		logger.Info().Str("addr", cfg.Address()).Str("merchant", svc.MerchantName()).Msg("POS backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	stopSweep()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error().Err(err).Msg("close error")
		}
	}

	logger.Info().Msg("server stopped")
}

// sweepSessions drops checkout sessions whose operators went away without
// signing out.
func sweepSessions(ctx context.Context, sessions *pos.Registry, interval time.Duration, maxIdle time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := sessions.Sweep(now.UTC(), maxIdle); removed > 0 {
				logger.Info().Int("removed", removed).Msg("idle checkout sessions swept")
			}
		}
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.DefaultBranchID == "" {
		return fmt.Errorf("DEFAULT_BRANCH_ID must not be empty")
	}
	return nil
}
