package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/cuongbtq/recon-queue/internal/catalog"
	"github.com/cuongbtq/recon-queue/internal/queue/controller"
	"github.com/gin-gonic/gin"
)

// SystemHandler serves health and catalog information
type SystemHandler struct {
	logger      *slog.Logger
	queues      map[string]*controller.Controller
	catalog     *catalog.Catalog
	healthCheck func(ctx context.Context) error
	service     string
	version     string
}

// NewSystemHandler creates a new SystemHandler instance
func NewSystemHandler(deps *Dependencies) *SystemHandler {
	return &SystemHandler{
		logger:      deps.Logger,
		queues:      deps.Queues,
		catalog:     deps.Catalog,
		healthCheck: deps.HealthCheck,
		service:     deps.ServiceName,
		version:     deps.Version,
	}
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	queues := make(gin.H, len(h.queues))
	for name, ctrl := range h.queues {
		queues[name] = ctrl.Summary()
	}

	resp := gin.H{
		"status":  "healthy",
		"service": h.service,
		"version": h.version,
		"queues":  queues,
	}

	if h.healthCheck != nil {
		if err := h.healthCheck(c.Request.Context()); err != nil {
			h.logger.Warn("Storage health check failed", slog.String("error", err.Error()))
			resp["status"] = "unhealthy"
			resp["error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Catalog handles GET /api/v1/catalog
func (h *SystemHandler) Catalog(c *gin.Context) {
	variants := make([]catalog.Variant, 0, len(h.queues))
	for _, ctrl := range h.queues {
		variants = append(variants, ctrl.Variant())
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i].Name < variants[j].Name })

	c.JSON(http.StatusOK, gin.H{
		"variants":   variants,
		"jobTypes":   h.catalog.JobTypes(),
		"collectors": h.catalog.Collectors(),
		"entries":    h.catalog.Entries(),
	})
}
