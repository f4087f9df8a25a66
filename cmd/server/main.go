package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tablemgr/internal/api"
	"tablemgr/internal/backup"
	"tablemgr/internal/config"
	"tablemgr/internal/metrics"
	"tablemgr/internal/models"
	"tablemgr/internal/session"
	"tablemgr/internal/storage"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("TABLEMGR_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	sqliteStore, err := storage.NewSQLiteStore(cfg.Database.Path, "", &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer sqliteStore.Close()

	var rdb *redis.Client
	factory := func(prefix string) storage.Store {
		return sqliteStore.WithPrefix(prefix)
	}
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		redisStore := storage.NewRedisStore(rdb, "", &logger)
		factory = func(prefix string) storage.Store {
			return storage.NewFailoverStore(redisStore.WithPrefix(prefix), sqliteStore.WithPrefix(prefix), &logger)
		}
		logger.Info().Str("address", cfg.Redis.Address).Msg("redis enabled as primary store")
	}

	sessions := session.NewStore(12 * time.Hour)

	defaults := models.RestaurantInfo{
		Name:                cfg.Restaurant.Name,
		OpeningTime:         cfg.Restaurant.OpeningTime,
		ClosingTime:         cfg.Restaurant.ClosingTime,
		ReservationDuration: cfg.Booking.DefaultDurationMinutes,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(ctx, api.Options{
		BasePrefix:          cfg.Restaurant.Prefix,
		CORSOrigins:         cfg.Server.CORSOrigins,
		RateLimit:           cfg.Server.RateLimit,
		RateBurst:           cfg.Server.RateBurst,
		DefaultDuration:     cfg.Booking.DefaultDurationMinutes,
		StrictTimeConflicts: cfg.Booking.StrictTimeConflicts,
		RestaurantDefaults:  defaults,
	}, factory, sessions, &logger)

	// Seed the default namespace before accepting traffic. AppFor also
	// starts the bundle's dashboard refresh loop.
	if _, err := server.AppFor(ctx, cfg.Restaurant.Prefix); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize default namespace")
	}

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := sessions.Cleanup(); removed > 0 {
					logger.Debug().Int("removed", removed).Msg("expired sessions dropped")
				}
			}
		}
	}()

	if cfg.Backup.Enabled {
		backupSvc := backup.NewService(sqliteStore.WithPrefix(cfg.Restaurant.Prefix), backup.Config{
			Enabled:       true,
			Interval:      cfg.BackupInterval(),
			Path:          cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backupSvc.Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, sqliteStore, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("table manager started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("table manager stopped")
}

func startHealthServer(ctx context.Context, port int, store *storage.SQLiteStore, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := store.Ping(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
