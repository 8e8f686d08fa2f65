package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/worktracker/internal/backup"
	"github.com/dukerupert/worktracker/internal/config"
	"github.com/dukerupert/worktracker/internal/store"
	"github.com/jmoiron/sqlx"
)

// restore downloads backup id and writes the decrypted database to dst. The
// live database is only read to find the backup record.
func restore(cfg *config.Config, db *sqlx.DB, id int64, dst string, logger *slog.Logger) error {
	mgr := backup.NewManager(backupConfig(cfg), db, store.NewBackupStore(db), nil, logger.With("component", "backup"))
	if !mgr.Enabled() {
		return backup.ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := mgr.Restore(ctx, id, dst); err != nil {
		return fmt.Errorf("restore backup %d: %w", id, err)
	}
	logger.Info("backup restored", "backup_id", id, "path", dst)
	return nil
}
