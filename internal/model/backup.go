package model

import (
	"database/sql"
	"time"
)

type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusUploading BackupStatus = "uploading"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

type Backup struct {
	ID           int64          `db:"id" json:"id"`
	Filename     string         `db:"filename" json:"filename"`
	S3Key        string         `db:"s3_key" json:"s3_key"`
	SizeBytes    int64          `db:"size_bytes" json:"size_bytes"`
	Status       BackupStatus   `db:"status" json:"status"`
	ErrorMessage sql.NullString `db:"error_message" json:"-"`
	StartedAt    sql.NullTime   `db:"started_at" json:"-"`
	CompletedAt  sql.NullTime   `db:"completed_at" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}
