package repository

import (
	"context"
	"errors"
	"time"

	"catalog-migration-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobListOptions contains options for listing migration jobs
type JobListOptions struct {
	Status string
	Limit  int
	Offset int
}

// LogListOptions contains options for listing migration logs
type LogListOptions struct {
	Level  string
	Limit  int
	Offset int
}

// MigrationRepository handles database operations for migration jobs and logs
type MigrationRepository struct {
	db *gorm.DB
}

// NewMigrationRepository creates a new migration repository
func NewMigrationRepository(db *gorm.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// CreateJob creates a new migration job
func (r *MigrationRepository) CreateJob(ctx context.Context, job *models.MigrationJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// GetJobByID retrieves a migration job by ID
func (r *MigrationRepository) GetJobByID(ctx context.Context, id uuid.UUID) (*models.MigrationJob, error) {
	var job models.MigrationJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJobStatus updates the job status, stamping completion for terminal states
func (r *MigrationRepository) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, errorMessage string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errorMessage,
		"updated_at":    now,
	}
	if status == models.JobStatusRunning {
		updates["started_at"] = &now
	} else if status.IsTerminal() {
		updates["completed_at"] = &now
	}
	return r.db.WithContext(ctx).
		Model(&models.MigrationJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateJobProgress updates the job progress
func (r *MigrationRepository) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress *models.JobProgress) error {
	job := models.MigrationJob{}
	job.SetProgress(progress)
	return r.db.WithContext(ctx).
		Model(&models.MigrationJob{}).
		Where("id = ?", id).
		Update("progress", job.Progress).Error
}

// ListJobs retrieves migration jobs with pagination and filtering
func (r *MigrationRepository) ListJobs(ctx context.Context, opts JobListOptions) ([]models.MigrationJob, int64, error) {
	var jobs []models.MigrationJob
	var total int64

	query := r.db.WithContext(ctx).Model(&models.MigrationJob{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	if err := query.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// CreateLog creates a migration log entry
func (r *MigrationRepository) CreateLog(ctx context.Context, log *models.MigrationLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// GetJobLogs retrieves logs for a migration job
func (r *MigrationRepository) GetJobLogs(ctx context.Context, jobID uuid.UUID, opts LogListOptions) ([]models.MigrationLog, error) {
	var logs []models.MigrationLog
	query := r.db.WithContext(ctx).Where("job_id = ?", jobID)

	if opts.Level != "" {
		query = query.Where("level = ?", opts.Level)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	err := query.Order("created_at DESC").Find(&logs).Error
	return logs, err
}

// MappingRepository handles database operations for product mappings
type MappingRepository struct {
	db *gorm.DB
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(db *gorm.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// UpsertProductMapping creates or updates the mapping for a product title
func (r *MappingRepository) UpsertProductMapping(ctx context.Context, mapping *models.ProductMapping) error {
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}},
		DoUpdates: clause.AssignmentColumns([]string{"source_sku", "destination_product_id", "last_job_id", "last_synced_at", "updated_at"}),
	}).Create(mapping).Error
}

// GetProductMappingByTitle returns the mapping for a title, or nil when none exists
func (r *MappingRepository) GetProductMappingByTitle(ctx context.Context, title string) (*models.ProductMapping, error) {
	var mapping models.ProductMapping
	err := r.db.WithContext(ctx).Where("title = ?", title).First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}
