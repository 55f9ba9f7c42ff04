package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthHandler serves liveness, readiness and metrics endpoints.
type HealthHandler struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sqlx.DB, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger,
	}
}

// Health reports overall service health including the database.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	status := "healthy"
	code := http.StatusOK
	checks := gin.H{}

	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
		checks["database"] = gin.H{"status": "down", "error": err.Error()}
		h.logger.Warn("health check: database unreachable", zap.Error(err))
	} else {
		checks["database"] = gin.H{"status": "up", "latency": time.Since(start).String()}
	}

	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}

// Ready reports whether the service can accept traffic.
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live reports process liveness.
// GET /live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Metrics exposes Prometheus metrics.
// GET /metrics
func (h *HealthHandler) Metrics(c *gin.Context) {
	promhttp.Handler().ServeHTTP(c.Writer, c.Request)
}
