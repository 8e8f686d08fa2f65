package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukerupert/worktracker/internal/backup"
	"github.com/dukerupert/worktracker/internal/cache"
	"github.com/dukerupert/worktracker/internal/config"
	"github.com/dukerupert/worktracker/internal/database"
	"github.com/dukerupert/worktracker/internal/logging"
	"github.com/dukerupert/worktracker/internal/server"
	"github.com/jmoiron/sqlx"
)

const cleanupInterval = time.Hour

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] [restore <backup-id> <dest.db>]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if args := flag.Args(); len(args) > 0 {
		if err := runCommand(cfg, db, args, logger); err != nil {
			logger.Error("command failed", "command", args[0], "error", err)
			db.Close()
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, memCache, err := newCache(ctx, cfg)
	if err != nil {
		logger.Error("failed to set up cache", "driver", cfg.Cache.Driver, "error", err)
		db.Close()
		os.Exit(1)
	}
	if closer, ok := c.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	srv := server.New(db, server.Options{
		Cache:          c,
		IdempotencyTTL: cfg.Cache.TTL,
		SessionTTL:     cfg.Session.TTL,
		SecureCookie:   cfg.Session.SecureCookie,
		IsAdminEmail:   cfg.IsAdminEmail,
		Backup:         backupConfig(cfg),
	}, logger)

	backupMgr := srv.BackupManager()
	backupMgr.Start(ctx)
	defer backupMgr.Stop()

	go runCleanup(ctx, srv, memCache, logger.With("component", "cleanup"))

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("worktracker running", "addr", "http://localhost:"+cfg.Port, "driver", cfg.Database.Driver, "cache", cfg.Cache.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func backupConfig(cfg *config.Config) backup.Config {
	s3 := cfg.Backup.S3
	return backup.Config{
		S3: backup.S3Config{
			Endpoint:  s3.Endpoint,
			Bucket:    s3.Bucket,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
		},
		Passphrase:    cfg.Backup.Passphrase,
		RetentionDays: cfg.Backup.RetentionDays,
	}
}

// newCache returns the configured cache. The memory cache is also returned
// on its own so the cleanup loop can sweep it.
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, *cache.Memory, error) {
	switch cfg.Cache.Driver {
	case "redis":
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, nil, nil
	default:
		m := cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.TTL)
		return m, m, nil
	}
}

func runCleanup(ctx context.Context, srv *server.Server, mem *cache.Memory, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := srv.SessionStore().DeleteExpired(ctx)
			if err != nil {
				logger.Error("session cleanup", "error", err)
			} else if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
			limited := srv.RateLimiter().Cleanup()
			swept := 0
			if mem != nil {
				swept = mem.Sweep()
			}
			logger.Debug("cleanup done", "rate_limit_windows", limited, "cache_entries", swept)
		}
	}
}

// runCommand handles the one-shot subcommands.
func runCommand(cfg *config.Config, db *sqlx.DB, args []string, logger *slog.Logger) error {
	switch args[0] {
	case "restore":
		if len(args) != 3 {
			return errors.New("usage: restore <backup-id> <dest.db>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid backup id %q", args[1])
		}
		return restore(cfg, db, id, args[2], logger)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
