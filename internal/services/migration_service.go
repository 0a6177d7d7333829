package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"catalog-migration-service/internal/catalog"
	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DateLayout is the calendar date format accepted for preview windows
const DateLayout = "2006-01-02"

const (
	// DefaultSyncConcurrency is the number of products reconciled at once
	DefaultSyncConcurrency = 4
	// lookupConcurrency bounds parallel destination title searches
	lookupConcurrency = 5
	// activeStatus is the source status of enabled products
	activeStatus = 1
)

// ErrInvalidDate is returned for malformed preview dates
var ErrInvalidDate = errors.New("invalid date")

// JobStore persists migration jobs and their logs
type JobStore interface {
	CreateJob(ctx context.Context, job *models.MigrationJob) error
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, errorMessage string) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress *models.JobProgress) error
	CreateLog(ctx context.Context, log *models.MigrationLog) error
}

// MappingStore persists title to destination product mappings
type MappingStore interface {
	GetProductMappingByTitle(ctx context.Context, title string) (*models.ProductMapping, error)
	UpsertProductMapping(ctx context.Context, mapping *models.ProductMapping) error
}

// MigrationConfig holds the tunables of the migration pipeline
type MigrationConfig struct {
	MediaBaseURL    string
	SyncConcurrency int
}

// MigrationService runs the preview, lookup and batch sync pipeline
type MigrationService struct {
	source      clients.SourceClient
	destination clients.DestinationClient
	reconciler  *Reconciler
	jobs        JobStore
	mappings    MappingStore
	limiter     *JobLimiter
	config      MigrationConfig
	logger      *logrus.Entry
	now         func() time.Time
}

// NewMigrationService creates a migration service. jobs, mappings and limiter may be nil.
func NewMigrationService(
	source clients.SourceClient,
	destination clients.DestinationClient,
	reconciler *Reconciler,
	jobs JobStore,
	mappings MappingStore,
	limiter *JobLimiter,
	config MigrationConfig,
	logger *logrus.Entry,
) *MigrationService {
	if config.SyncConcurrency <= 0 {
		config.SyncConcurrency = DefaultSyncConcurrency
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MigrationService{
		source:      source,
		destination: destination,
		reconciler:  reconciler,
		jobs:        jobs,
		mappings:    mappings,
		limiter:     limiter,
		config:      config,
		logger:      logger.WithField("component", "migration"),
		now:         time.Now,
	}
}

// PreviewRequest selects source products by creation date (YYYY-MM-DD, both optional)
type PreviewRequest struct {
	FromDate string `form:"fromDate" json:"fromDate"`
	ToDate   string `form:"toDate" json:"toDate"`
}

// PreviewResult is the formatted catalog offered for review
type PreviewResult struct {
	Products   []*catalog.CanonicalProduct `json:"products"`
	TotalCount int                         `json:"total_count"`
	FromDate   string                      `json:"from_date"`
	ToDate     string                      `json:"to_date"`
	Stats      *catalog.GroupingStats      `json:"stats"`
}

// ResolveWindow applies the preview date defaults: no dates means yesterday through today,
// only a to date means that single day, only a from date runs through today.
func ResolveWindow(fromDate, toDate string, now time.Time) (clients.DateWindow, error) {
	today := now.UTC().Format(DateLayout)
	switch {
	case fromDate == "" && toDate == "":
		fromDate = now.UTC().AddDate(0, 0, -1).Format(DateLayout)
		toDate = today
	case fromDate == "":
		fromDate = toDate
	case toDate == "":
		toDate = today
	}

	from, err := time.Parse(DateLayout, fromDate)
	if err != nil {
		return clients.DateWindow{}, fmt.Errorf("%w: fromDate %q", ErrInvalidDate, fromDate)
	}
	to, err := time.Parse(DateLayout, toDate)
	if err != nil {
		return clients.DateWindow{}, fmt.Errorf("%w: toDate %q", ErrInvalidDate, toDate)
	}
	if to.Before(from) {
		return clients.DateWindow{}, fmt.Errorf("%w: toDate %s is before fromDate %s", ErrInvalidDate, toDate, fromDate)
	}

	return clients.DateWindow{
		From: from,
		To:   to.Add(24*time.Hour - time.Second),
	}, nil
}

// Preview fetches, groups and formats source products and attaches existing destination ids
func (s *MigrationService) Preview(ctx context.Context, req PreviewRequest) (*PreviewResult, error) {
	window, err := ResolveWindow(req.FromDate, req.ToDate, s.now())
	if err != nil {
		return nil, err
	}
	result := &PreviewResult{
		Products: []*catalog.CanonicalProduct{},
		FromDate: window.From.Format(clients.SourceFormat),
		ToDate:   window.To.Format(clients.SourceFormat),
		Stats:    &catalog.GroupingStats{},
	}
	log := s.logger.WithFields(logrus.Fields{"from": result.FromDate, "to": result.ToDate})

	schema, err := s.source.FetchAttributeSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attribute metadata: %w", err)
	}
	maps, err := catalog.BuildAttributeMaps(schema)
	if err != nil {
		return nil, err
	}

	records, err := s.source.FetchSourceProducts(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source products: %w", err)
	}
	active := make([]catalog.SourceProduct, 0, len(records))
	for _, r := range records {
		if r.Status == activeStatus {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		log.Info("No active source products in window")
		return result, nil
	}

	families, stats, err := catalog.NewGrouper(s.source).Group(ctx, active)
	if err != nil {
		return nil, err
	}
	result.Stats = stats
	log.WithFields(logrus.Fields{
		"simples":    stats.Simples,
		"candidates": stats.Candidates,
		"matched":    stats.Matched,
		"standalone": stats.Standalone,
	}).Info("Grouped source products")

	formatter := catalog.NewFormatter(catalog.NewMapResolver(maps), s.config.MediaBaseURL)
	titles := make([]string, 0, len(families))
	for _, family := range families {
		product, err := formatter.Format(family)
		if err != nil {
			return nil, fmt.Errorf("failed to format product: %w", err)
		}
		result.Products = append(result.Products, product)
		titles = append(titles, product.Title)
	}

	existing, err := s.FindExisting(ctx, titles)
	if err != nil {
		return nil, err
	}
	byTitle := make(map[string]string, len(existing))
	for _, e := range existing {
		byTitle[e.Title] = e.ID
	}
	for _, product := range result.Products {
		product.ExistingDestinationID = byTitle[product.Title]
	}

	result.TotalCount = len(result.Products)
	return result, nil
}

// ExistingProduct is a destination product found for a title
type ExistingProduct struct {
	Title string `json:"title"`
	ID    string `json:"id"`
}

// FindExisting looks up destination products by title, consulting stored mappings first.
// Titles without a match are omitted.
func (s *MigrationService) FindExisting(ctx context.Context, titles []string) ([]ExistingProduct, error) {
	found := make([]string, len(titles))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, title := range titles {
		g.Go(func() error {
			id, err := s.findExisting(ctx, title)
			if err != nil {
				return err
			}
			found[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	existing := make([]ExistingProduct, 0, len(titles))
	for i, id := range found {
		if id != "" {
			existing = append(existing, ExistingProduct{Title: titles[i], ID: id})
		}
	}
	return existing, nil
}

func (s *MigrationService) findExisting(ctx context.Context, title string) (string, error) {
	if s.mappings != nil {
		mapping, err := s.mappings.GetProductMappingByTitle(ctx, title)
		if err != nil {
			s.logger.WithError(err).WithField("title", title).Warn("Product mapping lookup failed")
		} else if mapping != nil {
			return mapping.DestinationProductID, nil
		}
	}

	refs, err := s.destination.FindProductsByTitle(ctx, title)
	if err != nil {
		return "", fmt.Errorf("failed to find product %q: %w", title, err)
	}
	for _, ref := range refs {
		if ref.Title == title {
			return ref.ID, nil
		}
	}
	if len(refs) > 0 {
		return refs[0].ID, nil
	}
	return "", nil
}

// SyncRequest carries the reviewed products to push to the destination
type SyncRequest struct {
	Products  []catalog.CanonicalProduct `json:"products" binding:"required"`
	CreatedBy string                     `json:"-"`
}

// ProductSyncResult is the outcome for one product of a batch
type ProductSyncResult struct {
	Title     string   `json:"title"`
	SKU       string   `json:"sku"`
	ProductID string   `json:"productId,omitempty"`
	Created   bool     `json:"created"`
	Warnings  []string `json:"warnings,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// SyncResult is the outcome of a batch sync
type SyncResult struct {
	JobID     *uuid.UUID          `json:"jobId,omitempty"`
	Status    models.JobStatus    `json:"status"`
	Results   []ProductSyncResult `json:"results"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// Sync reconciles every product concurrently. A failed product is recorded in its
// result and never cancels the others. Once admitted, the batch runs to completion
// even if the caller goes away: a product pipeline stopped between mutations would
// leave a half-built destination product.
func (s *MigrationService) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	if s.limiter != nil {
		release, err := s.limiter.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	ctx = context.WithoutCancel(ctx)

	job := s.startJob(ctx, req)
	log := s.logger
	if job != nil {
		log = log.WithField("jobId", job.ID)
	}
	log.WithField("products", len(req.Products)).Info("Sync started")

	results := make([]ProductSyncResult, len(req.Products))
	tracker := &progressTracker{total: len(req.Products)}

	var g errgroup.Group
	g.SetLimit(s.config.SyncConcurrency)
	for i := range req.Products {
		product := &req.Products[i]
		g.Go(func() error {
			results[i] = s.syncProduct(ctx, job, product)
			progress := tracker.record(results[i].Error == "")
			if job != nil {
				if err := s.jobs.UpdateJobProgress(ctx, job.ID, progress); err != nil {
					log.WithError(err).Warn("Failed to update job progress")
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := &SyncResult{Results: results}
	for _, r := range results {
		if r.Error == "" {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	switch {
	case out.Failed == 0:
		out.Status = models.JobStatusCompleted
	case out.Succeeded == 0:
		out.Status = models.JobStatusFailed
	default:
		out.Status = models.JobStatusPartial
	}

	if job != nil {
		out.JobID = &job.ID
		message := ""
		if out.Failed > 0 {
			message = fmt.Sprintf("%d of %d products failed", out.Failed, len(results))
		}
		if err := s.jobs.UpdateJobStatus(ctx, job.ID, out.Status, message); err != nil {
			log.WithError(err).Warn("Failed to update job status")
		}
	}

	log.WithFields(logrus.Fields{
		"status":    out.Status,
		"succeeded": out.Succeeded,
		"failed":    out.Failed,
	}).Info("Sync finished")
	return out, nil
}

func (s *MigrationService) syncProduct(ctx context.Context, job *models.MigrationJob, product *catalog.CanonicalProduct) ProductSyncResult {
	result := ProductSyncResult{Title: product.Title, SKU: product.SKU}

	reconciled, err := s.reconciler.Reconcile(ctx, product)
	if err != nil {
		result.Error = err.Error()
		data := models.JSONB{"error": err.Error()}
		if reconciled != nil {
			// the destination product exists but is incomplete
			result.ProductID = reconciled.ProductID
			result.Created = reconciled.Created
			result.Warnings = reconciled.Warnings
			data["productId"] = reconciled.ProductID
			data["created"] = reconciled.Created
		}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"title":     product.Title,
			"productId": result.ProductID,
		}).Error("Failed to sync product")
		s.logEvent(ctx, job, models.LogLevelError, product.Title, "Failed to sync product", data)
		return result
	}

	result.ProductID = reconciled.ProductID
	result.Created = reconciled.Created
	result.Warnings = reconciled.Warnings

	level := models.LogLevelInfo
	if len(reconciled.Warnings) > 0 {
		level = models.LogLevelWarn
	}
	s.logEvent(ctx, job, level, product.Title, "Product synced", models.JSONB{
		"productId": reconciled.ProductID,
		"created":   reconciled.Created,
		"variants":  reconciled.VariantsCreated,
		"warnings":  reconciled.Warnings,
	})

	if s.mappings != nil {
		now := s.now()
		mapping := &models.ProductMapping{
			Title:                product.Title,
			SourceSKU:            product.SKU,
			DestinationProductID: reconciled.ProductID,
			LastSyncedAt:         &now,
		}
		if job != nil {
			mapping.LastJobID = &job.ID
		}
		if err := s.mappings.UpsertProductMapping(ctx, mapping); err != nil {
			s.logger.WithError(err).WithField("title", product.Title).Warn("Failed to store product mapping")
		}
	}
	return result
}

// startJob records a running job; it returns nil when jobs are not persisted
func (s *MigrationService) startJob(ctx context.Context, req SyncRequest) *models.MigrationJob {
	if s.jobs == nil {
		return nil
	}
	now := s.now()
	job := &models.MigrationJob{
		ID:        uuid.New(),
		Status:    models.JobStatusRunning,
		StartedAt: &now,
		CreatedBy: req.CreatedBy,
	}
	job.SetProgress(&models.JobProgress{TotalItems: len(req.Products)})
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		s.logger.WithError(err).Warn("Failed to create migration job, continuing without job tracking")
		return nil
	}
	return job
}

// logEvent creates a migration log entry
func (s *MigrationService) logEvent(ctx context.Context, job *models.MigrationJob, level models.LogLevel, title, message string, data models.JSONB) {
	if job == nil {
		return
	}
	log := &models.MigrationLog{
		ID:      uuid.New(),
		JobID:   job.ID,
		Level:   level,
		Title:   title,
		Message: message,
		Data:    data,
	}
	if err := s.jobs.CreateLog(ctx, log); err != nil {
		s.logger.WithError(err).Warn("Failed to write migration log")
	}
}

// progressTracker accumulates job progress across concurrent product tasks
type progressTracker struct {
	mu       sync.Mutex
	total    int
	progress models.JobProgress
}

func (t *progressTracker) record(success bool) *models.JobProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress.TotalItems = t.total
	t.progress.ProcessedItems++
	if success {
		t.progress.SuccessfulItems++
	} else {
		t.progress.FailedItems++
	}
	if t.total > 0 {
		t.progress.Percentage = float64(t.progress.ProcessedItems) / float64(t.total) * 100
	}
	snapshot := t.progress
	return &snapshot
}
