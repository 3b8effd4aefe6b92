package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-dental-backend/internal/config"
	httpapi "github.com/tbourn/go-dental-backend/internal/http"
	"github.com/tbourn/go-dental-backend/internal/observability"
	"github.com/tbourn/go-dental-backend/internal/repo"
	"github.com/tbourn/go-dental-backend/internal/scheduling"
)

const shutdownGrace = 15 * time.Second

func newServeCmd(cfg *config.Config) *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfg, !skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not migrate the schema on start-up")
	return cmd
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			db, err := openDB(*cfg, true)
			if err != nil {
				return err
			}
			closeDB(db)
			log.Info().Str("driver", cfg.DBDriver).Msg("schema up to date")
			return nil
		},
	}
}

func serve(ctx context.Context, cfg config.Config, migrate bool) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version,
		observability.AttrClinicTimezone.String(cfg.Clinic.Location().String()))
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := openDB(cfg, migrate)
	if err != nil {
		return err
	}
	defer closeDB(db)

	locker, closeLocker, err := newLocker(ctx, cfg.Booking)
	if err != nil {
		return err
	}
	defer closeLocker()

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	if err := httpapi.RegisterRoutes(engine, db, locker, cfg); err != nil {
		return err
	}

	go purgeIdempotency(ctx, db, cfg.IdempotencyPurge)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("db", cfg.DBDriver).
			Str("timezone", cfg.Clinic.Location().String()).
			Bool("auth", cfg.Auth.Enabled()).
			Msg("clinicd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	c, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(c)
}

func openDB(cfg config.Config, migrate bool) (*gorm.DB, error) {
	db, err := repo.Open(cfg.DBDriver, cfg.DBDSN, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if migrate {
		if err := repo.AutoMigrate(db); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newLocker picks the Redis day lock when REDIS_ADDR is set, so several
// instances share one agenda; otherwise locks stay in process.
func newLocker(ctx context.Context, bc config.BookingConfig) (scheduling.Locker, func(), error) {
	if bc.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR not set: booking locks are local to this instance")
		return scheduling.NewLocalLocker(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     bc.RedisAddr,
		Password: bc.RedisPassword,
		DB:       bc.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", bc.RedisAddr, err)
	}
	return scheduling.NewRedisLocker(client, bc.LockTTL), func() { _ = client.Close() }, nil
}

// purgeIdempotency removes expired Idempotency-Key records every interval
// until ctx is done.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			purgeOnce(ctx, db, now.UTC())
		}
	}
}

func purgeOnce(ctx context.Context, db *gorm.DB, now time.Time) int64 {
	n, err := repo.PurgeExpiredIdempotency(ctx, db, now)
	if err != nil {
		log.Warn().Err(err).Msg("idempotency purge failed")
		return 0
	}
	if n > 0 {
		log.Debug().Int64("removed", n).Msg("expired idempotency keys purged")
	}
	return n
}
