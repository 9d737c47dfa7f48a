package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/recon-queue/internal/catalog"
	"github.com/cuongbtq/recon-queue/internal/queue/controller"
	"github.com/cuongbtq/recon-queue/internal/queue/domain"
	"github.com/gin-gonic/gin"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Queues         map[string]*controller.Controller
	Catalog        *catalog.Catalog
	HealthCheck    func(ctx context.Context) error // storage ping, optional
	ServiceName    string
	Version        string
	AllowedOrigins []string
}

// JobHandler handles queue-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	queues map[string]*controller.Controller
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		queues: deps.Queues,
	}
}

// queue resolves the :variant path parameter, writing 404 when unknown.
func (h *JobHandler) queue(c *gin.Context) (*controller.Controller, bool) {
	name := c.Param("variant")
	ctrl, ok := h.queues[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "unknown queue variant: " + name,
		})
		return nil, false
	}
	return ctrl, true
}

// statusFor maps queue errors to HTTP status codes.
func statusFor(err error) int {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr),
		errors.Is(err, domain.ErrMissingSelection),
		errors.Is(err, domain.ErrInvalidSelection):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEndpointNotMapped):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrUnknownVariant):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrJobNotPending),
		errors.Is(err, domain.ErrJobNotRecovered),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the mapped status. Server errors are logged and
// their detail hidden.
func (h *JobHandler) writeError(c *gin.Context, action string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Failed to "+action,
			slog.String("variant", c.Param("variant")),
			slog.String("error", err.Error()),
		)
		c.JSON(status, gin.H{
			"error": "Failed to " + action,
		})
		return
	}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(status, gin.H{
			"error":  err.Error(),
			"reason": vErr.Reason,
		})
		return
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}
