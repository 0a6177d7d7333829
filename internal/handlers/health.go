package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

const serviceName = "catalog-migration-service"

// Pinger checks a dependency for readiness
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StatsProvider exposes runtime statistics on the health endpoint
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db    Pinger
	stats StatsProvider
}

// NewHealthHandler creates a new health handler; db and stats may be nil
func NewHealthHandler(db Pinger, stats StatsProvider) *HealthHandler {
	return &HealthHandler{db: db, stats: stats}
}

// Health handles the health check endpoint
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": serviceName,
	}
	if h.stats != nil {
		body["sync"] = h.stats.GetStats()
	}
	c.JSON(http.StatusOK, body)
}

// Ready handles the readiness check endpoint
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"service": serviceName,
				"error":   err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": serviceName,
	})
}
