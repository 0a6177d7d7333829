package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"catalog-migration-service/internal/catalog"
	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/export"
	"catalog-migration-service/internal/models"
	"catalog-migration-service/internal/repository"
	"catalog-migration-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// MockMigrationRunner is a mock implementation of MigrationRunner
type MockMigrationRunner struct {
	mock.Mock
}

var _ MigrationRunner = (*MockMigrationRunner)(nil)

func (m *MockMigrationRunner) Preview(ctx context.Context, req services.PreviewRequest) (*services.PreviewResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PreviewResult), args.Error(1)
}

func (m *MockMigrationRunner) FindExisting(ctx context.Context, titles []string) ([]services.ExistingProduct, error) {
	args := m.Called(ctx, titles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.ExistingProduct), args.Error(1)
}

func (m *MockMigrationRunner) Sync(ctx context.Context, req services.SyncRequest) (*services.SyncResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SyncResult), args.Error(1)
}

// MockJobReader is a mock implementation of JobReader
type MockJobReader struct {
	mock.Mock
}

var _ JobReader = (*MockJobReader)(nil)

func (m *MockJobReader) ListJobs(ctx context.Context, opts repository.JobListOptions) ([]models.MigrationJob, int64, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.MigrationJob), args.Get(1).(int64), args.Error(2)
}

func (m *MockJobReader) GetJobByID(ctx context.Context, id uuid.UUID) (*models.MigrationJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MigrationJob), args.Error(1)
}

func (m *MockJobReader) GetJobLogs(ctx context.Context, jobID uuid.UUID, opts repository.LogListOptions) ([]models.MigrationLog, error) {
	args := m.Called(ctx, jobID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MigrationLog), args.Error(1)
}

func setupRouter(runner MigrationRunner, jobs JobReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewMigrationHandler(runner, jobs)
	router.GET("/products", h.PreviewProducts)
	router.GET("/products/export", h.ExportProducts)
	router.POST("/products/lookup", h.LookupProducts)
	router.POST("/sync", h.SyncProducts)
	router.GET("/jobs", h.ListJobs)
	router.GET("/jobs/:id", h.GetJob)
	router.GET("/jobs/:id/logs", h.GetJobLogs)
	return router
}

func perform(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPreviewProducts(t *testing.T) {
	runner := new(MockMigrationRunner)
	runner.On("Preview", mock.Anything, services.PreviewRequest{FromDate: "2024-03-01", ToDate: "2024-03-02"}).Return(&services.PreviewResult{
		Products:   []*catalog.CanonicalProduct{{Title: "Tee", Status: catalog.StatusActive}},
		TotalCount: 1,
		FromDate:   "2024-03-01 00:00:00",
		ToDate:     "2024-03-02 23:59:59",
	}, nil)

	w := perform(setupRouter(runner, nil), http.MethodGet, "/products?fromDate=2024-03-01&toDate=2024-03-02", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Products []map[string]interface{} `json:"products"`
			Total    int                      `json:"total_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data.Total)
	assert.Equal(t, "Tee", body.Data.Products[0]["title"])
}

func TestPreviewProducts_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid date", fmt.Errorf("%w: fromDate", services.ErrInvalidDate), http.StatusBadRequest},
		{"metadata", &catalog.MetadataError{Index: 1, Reason: "missing attribute_code"}, http.StatusBadGateway},
		{"transport", fmt.Errorf("failed: %w", &clients.TransportError{Operation: "x", StatusCode: 500}), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(MockMigrationRunner)
			runner.On("Preview", mock.Anything, mock.Anything).Return(nil, tt.err)
			w := perform(setupRouter(runner, nil), http.MethodGet, "/products", nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestExportProducts(t *testing.T) {
	runner := new(MockMigrationRunner)
	runner.On("Preview", mock.Anything, services.PreviewRequest{FromDate: "2024-03-01"}).Return(&services.PreviewResult{
		Products:   []*catalog.CanonicalProduct{{Title: "Tee", Status: catalog.StatusActive}},
		TotalCount: 1,
		FromDate:   "2024-03-01 00:00:00",
		ToDate:     "2024-03-10 23:59:59",
	}, nil)

	w := perform(setupRouter(runner, nil), http.MethodGet, "/products/export?fromDate=2024-03-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="catalog-preview-2024-03-01-2024-03-10.xlsx"`, w.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	value, err := f.GetCellValue(export.ProductsSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Tee", value)
}

func TestLookupProducts(t *testing.T) {
	runner := new(MockMigrationRunner)
	runner.On("FindExisting", mock.Anything, []string{"Tee", "Cap"}).
		Return([]services.ExistingProduct{{Title: "Tee", ID: "gid://shopify/Product/1"}}, nil)

	w := perform(setupRouter(runner, nil), http.MethodPost, "/products/lookup", LookupRequest{ProductTitles: []string{"Tee", "Cap"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[{"title":"Tee","id":"gid://shopify/Product/1"}]}`, w.Body.String())

	w = perform(setupRouter(runner, nil), http.MethodPost, "/products/lookup", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncProducts(t *testing.T) {
	runner := new(MockMigrationRunner)
	runner.On("Sync", mock.Anything, mock.MatchedBy(func(req services.SyncRequest) bool {
		return len(req.Products) == 1 && req.Products[0].Title == "Tee" && req.Products[0].ExistingDestinationID == "gid://shopify/Product/7"
	})).Return(&services.SyncResult{
		Status:    models.JobStatusCompleted,
		Results:   []services.ProductSyncResult{{Title: "Tee", ProductID: "gid://shopify/Product/7"}},
		Succeeded: 1,
	}, nil)

	payload := map[string]interface{}{
		"products": []map[string]interface{}{
			{"title": "Tee", "shopifyProductId": "gid://shopify/Product/7", "variants": []interface{}{}},
		},
	}
	w := perform(setupRouter(runner, nil), http.MethodPost, "/sync", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"COMPLETED"`)
	runner.AssertExpectations(t)
}

func TestSyncProducts_Rejections(t *testing.T) {
	runner := new(MockMigrationRunner)
	w := perform(setupRouter(runner, nil), http.MethodPost, "/sync", map[string]interface{}{"products": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	runner.On("Sync", mock.Anything, mock.Anything).Return(nil, services.ErrTooManyJobs)
	w = perform(setupRouter(runner, nil), http.MethodPost, "/sync", map[string]interface{}{
		"products": []map[string]interface{}{{"title": "Tee"}},
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestJobsEndpoints(t *testing.T) {
	jobID := uuid.New()
	job := &models.MigrationJob{ID: jobID, Status: models.JobStatusPartial}
	job.SetProgress(&models.JobProgress{TotalItems: 4, ProcessedItems: 4, SuccessfulItems: 3, FailedItems: 1, Percentage: 100})

	jobs := new(MockJobReader)
	jobs.On("ListJobs", mock.Anything, repository.JobListOptions{Status: "PARTIAL", Limit: 20}).
		Return([]models.MigrationJob{*job}, int64(1), nil)
	jobs.On("GetJobByID", mock.Anything, jobID).Return(job, nil)
	jobs.On("GetJobLogs", mock.Anything, jobID, repository.LogListOptions{Limit: 100}).
		Return([]models.MigrationLog{{JobID: jobID, Level: models.LogLevelError, Title: "Beta", Message: "Failed to sync product"}}, nil)

	router := setupRouter(new(MockMigrationRunner), jobs)

	w := perform(router, http.MethodGet, "/jobs?status=PARTIAL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = perform(router, http.MethodGet, "/jobs/"+jobID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"failedItems":1`)

	w = perform(router, http.MethodGet, "/jobs/"+jobID.String()+"/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Beta"`)

	w = perform(router, http.MethodGet, "/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobsEndpoints_WithoutPersistence(t *testing.T) {
	w := perform(setupRouter(new(MockMigrationRunner), nil), http.MethodGet, "/jobs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHealthHandler(failingPinger{}, nil)
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)

	w := perform(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = perform(router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type failingPinger struct{}

func (failingPinger) PingContext(ctx context.Context) error { return errors.New("connection refused") }
