package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"catalog-migration-service/internal/catalog"
	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/export"
	"catalog-migration-service/internal/middleware"
	"catalog-migration-service/internal/models"
	"catalog-migration-service/internal/repository"
	"catalog-migration-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MigrationRunner is the pipeline driven by the migration endpoints
type MigrationRunner interface {
	Preview(ctx context.Context, req services.PreviewRequest) (*services.PreviewResult, error)
	FindExisting(ctx context.Context, titles []string) ([]services.ExistingProduct, error)
	Sync(ctx context.Context, req services.SyncRequest) (*services.SyncResult, error)
}

// JobReader reads persisted migration jobs
type JobReader interface {
	ListJobs(ctx context.Context, opts repository.JobListOptions) ([]models.MigrationJob, int64, error)
	GetJobByID(ctx context.Context, id uuid.UUID) (*models.MigrationJob, error)
	GetJobLogs(ctx context.Context, jobID uuid.UUID, opts repository.LogListOptions) ([]models.MigrationLog, error)
}

// MigrationHandler handles catalog migration endpoints
type MigrationHandler struct {
	runner MigrationRunner
	jobs   JobReader
}

// NewMigrationHandler creates a new migration handler. jobs may be nil when persistence is disabled.
func NewMigrationHandler(runner MigrationRunner, jobs JobReader) *MigrationHandler {
	return &MigrationHandler{runner: runner, jobs: jobs}
}

// PreviewProducts returns formatted source products for review
func (h *MigrationHandler) PreviewProducts(c *gin.Context) {
	var req services.PreviewRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.runner.Preview(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ExportProducts returns the preview as an XLSX workbook for offline review
func (h *MigrationHandler) ExportProducts(c *gin.Context) {
	var req services.PreviewRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.runner.Preview(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := export.WritePreview(&buf, result.Products); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("catalog-preview-%s-%s.xlsx", dateOnly(result.FromDate), dateOnly(result.ToDate))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// LookupRequest lists product titles to look up in the destination
type LookupRequest struct {
	ProductTitles []string `json:"productTitles" binding:"required"`
}

// LookupProducts returns destination ids for titles already present there
func (h *MigrationHandler) LookupProducts(c *gin.Context) {
	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.runner.FindExisting(c.Request.Context(), req.ProductTitles)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": existing})
}

// SyncProducts pushes reviewed products to the destination
func (h *MigrationHandler) SyncProducts(c *gin.Context) {
	var req services.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Products) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no products to sync"})
		return
	}
	req.CreatedBy = middleware.GetOperator(c)

	result, err := h.runner.Sync(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ListJobs returns migration jobs, newest first
func (h *MigrationHandler) ListJobs(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job history is not available"})
		return
	}

	opts := repository.JobListOptions{
		Status: c.Query("status"),
		Limit:  queryInt(c, "limit", 20),
		Offset: queryInt(c, "offset", 0),
	}
	jobs, total, err := h.jobs.ListJobs(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  jobs,
		"total": total,
	})
}

// GetJob returns a single migration job with its progress
func (h *MigrationHandler) GetJob(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job history is not available"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	job, err := h.jobs.GetJobByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     job,
		"progress": job.GetProgress(),
	})
}

// GetJobLogs returns the per-product logs of a migration job
func (h *MigrationHandler) GetJobLogs(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job history is not available"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	logs, err := h.jobs.GetJobLogs(c.Request.Context(), id, repository.LogListOptions{
		Level:  c.Query("level"),
		Limit:  queryInt(c, "limit", 100),
		Offset: queryInt(c, "offset", 0),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	var (
		metaErr      *catalog.MetadataError
		transportErr *clients.TransportError
	)
	switch {
	case errors.Is(err, services.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrTooManyJobs):
		return http.StatusTooManyRequests
	case errors.As(err, &metaErr), errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// dateOnly keeps the YYYY-MM-DD prefix of a window bound
func dateOnly(ts string) string {
	if len(ts) > 10 {
		return ts[:10]
	}
	return ts
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}
