package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"taxledger/internal/infrastructure/storage/postgres"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthInfo is static application information for /health/info.
type HealthInfo struct {
	App            string
	Version        string
	Environment    string
	OnlinePayments bool
	DashboardCache bool
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	pool   *postgres.Pool
	checks map[string]Pinger
	info   HealthInfo
}

// NewHealthHandler creates a new health handler. checks are probed by
// /health/ready in addition to the database.
func NewHealthHandler(pool *postgres.Pool, info HealthInfo, checks map[string]Pinger) *HealthHandler {
	all := make(map[string]Pinger, len(checks)+1)
	for name, p := range checks {
		if p != nil {
			all[name] = p
		}
	}
	if pool != nil {
		all["database"] = pool
	}
	return &HealthHandler{pool: pool, checks: all, info: info}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(c.Request.Context()); err != nil {
			results[name] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "healthy"
	}

	body := gin.H{"status": "ok", "checks": results}
	if status != http.StatusOK {
		body["status"] = "error"
	}
	c.JSON(status, body)
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{
		"app":            h.info.App,
		"version":        h.info.Version,
		"environment":    h.info.Environment,
		"onlinePayments": h.info.OnlinePayments,
		"dashboardCache": h.info.DashboardCache,
	}
	if h.pool != nil && h.pool.Pool != nil {
		stat := h.pool.Stat()
		body["database"] = map[string]any{
			"total_conns":    stat.TotalConns(),
			"acquired_conns": stat.AcquiredConns(),
			"idle_conns":     stat.IdleConns(),
			"max_conns":      stat.MaxConns(),
		}
	}
	c.JSON(http.StatusOK, body)
}

// RegisterRoutes registers health routes.
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/live", h.Live)
	rg.GET("/ready", h.Ready)
	rg.GET("/info", h.Info)
}
