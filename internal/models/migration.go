package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JSONB is a free-form Postgres jsonb column
type JSONB = datatypes.JSONMap

// JobStatus represents the status of a migration job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusPartial   JobStatus = "PARTIAL"
	JobStatusFailed    JobStatus = "FAILED"
)

// IsTerminal reports whether the job has finished
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusPartial || s == JobStatusFailed
}

// JobProgress tracks the progress of a migration job
type JobProgress struct {
	TotalItems      int     `json:"totalItems"`
	ProcessedItems  int     `json:"processedItems"`
	SuccessfulItems int     `json:"successfulItems"`
	FailedItems     int     `json:"failedItems"`
	Percentage      float64 `json:"percentage"`
}

// MigrationJob is one batch sync of canonical products into the destination
type MigrationJob struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Status JobStatus `gorm:"type:varchar(50);not null;default:'PENDING';index:idx_migration_jobs_status" json:"status"`

	Progress JSONB `gorm:"type:jsonb;default:'{}'" json:"progress"`

	// Source window the products were previewed from, when known
	WindowFrom *time.Time `json:"windowFrom,omitempty"`
	WindowTo   *time.Time `json:"windowTo,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	ErrorMessage string `gorm:"type:text" json:"errorMessage,omitempty"`
	CreatedBy    string `gorm:"type:varchar(255)" json:"createdBy,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`

	Logs []MigrationLog `gorm:"foreignKey:JobID" json:"logs,omitempty"`
}

// TableName specifies the table name for MigrationJob
func (MigrationJob) TableName() string {
	return "migration_jobs"
}

// GetProgress returns the job progress as a structured object. The column may
// hold float64 values (set in memory) or json.Number values (scanned from Postgres).
func (j *MigrationJob) GetProgress() *JobProgress {
	progress := &JobProgress{}
	if len(j.Progress) == 0 {
		return progress
	}
	raw, err := json.Marshal(j.Progress)
	if err != nil {
		return progress
	}
	if err := json.Unmarshal(raw, progress); err != nil {
		return &JobProgress{}
	}
	return progress
}

// SetProgress stores the progress; values are kept as float64 like decoded JSON
func (j *MigrationJob) SetProgress(progress *JobProgress) {
	j.Progress = JSONB{
		"totalItems":      float64(progress.TotalItems),
		"processedItems":  float64(progress.ProcessedItems),
		"successfulItems": float64(progress.SuccessfulItems),
		"failedItems":     float64(progress.FailedItems),
		"percentage":      progress.Percentage,
	}
}

// LogLevel represents the severity level of a migration log
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// MigrationLog is a per-product log entry of a migration job
type MigrationLog struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	JobID uuid.UUID `gorm:"type:uuid;not null;index:idx_migration_logs_job" json:"jobId"`

	Level   LogLevel `gorm:"type:varchar(20);not null;default:'info';index:idx_migration_logs_level" json:"level"`
	Title   string   `gorm:"type:varchar(500)" json:"title,omitempty"`
	Message string   `gorm:"type:text;not null" json:"message"`
	Data    JSONB    `gorm:"type:jsonb;default:'{}'" json:"data,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for MigrationLog
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// ProductMapping links a migrated product title and source SKU to its destination product
type ProductMapping struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`

	Title     string `gorm:"type:varchar(500);not null;uniqueIndex:idx_product_mappings_title" json:"title"`
	SourceSKU string `gorm:"type:varchar(255);index:idx_product_mappings_sku" json:"sourceSku,omitempty"`

	DestinationProductID string `gorm:"type:varchar(255);not null;index:idx_product_mappings_destination" json:"destinationProductId"`

	LastJobID    *uuid.UUID `gorm:"type:uuid" json:"lastJobId,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for ProductMapping
func (ProductMapping) TableName() string {
	return "product_mappings"
}
