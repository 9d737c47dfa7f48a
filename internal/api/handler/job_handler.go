package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/recon-queue/internal/api/dto"
	"github.com/cuongbtq/recon-queue/internal/queue/controller"
	"github.com/cuongbtq/recon-queue/internal/queue/domain"
	"github.com/gin-gonic/gin"
)

// EnqueueJob handles POST /api/v1/queues/:variant/jobs
// Appends a pending job after validating the selection and date range
func (h *JobHandler) EnqueueJob(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	// 1. Validate request body
	var req dto.EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	from, err := optionalDate(req.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := optionalDate(req.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. Enqueue through the controller
	job, err := ctrl.Enqueue(controller.EnqueueRequest{
		JobType:   domain.JobType(req.JobType),
		Collector: domain.Collector(req.Collector),
		From:      from,
		To:        to,
	})
	if err != nil {
		h.writeError(c, "enqueue job", err)
		return
	}

	// 3. Return the created job
	c.JSON(http.StatusCreated, dto.FromJob(job))
}

// optionalDate parses a YYYY-MM-DD date; empty means not selected.
func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseDate(s)
}

// ListJobs handles GET /api/v1/queues/:variant/jobs
// Lists the queue in enqueue order, optionally filtered by state
func (h *JobHandler) ListJobs(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	jobs := ctrl.Jobs()
	if req.State != "" {
		filtered := jobs[:0]
		for _, job := range jobs {
			if string(job.State) == req.State {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:  dto.FromJobs(jobs),
		Total: len(jobs),
	})
}

// GetJob handles GET /api/v1/queues/:variant/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	job, err := ctrl.Job(c.Param("job_id"))
	if err != nil {
		h.writeError(c, "get job", err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// RunJob handles POST /api/v1/queues/:variant/jobs/:job_id/run
// Starts a pending job; the backend call continues after the response
func (h *JobHandler) RunJob(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	job, err := ctrl.Run(c.Param("job_id"))
	if err != nil {
		h.writeError(c, "run job", err)
		return
	}

	c.JSON(http.StatusAccepted, dto.FromJob(job))
}

// RunPending handles POST /api/v1/queues/:variant/jobs/run-pending
func (h *JobHandler) RunPending(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	started, err := ctrl.RunAllPending()

	resp := dto.RunPendingResponse{Started: started}
	if resp.Started == nil {
		resp.Started = []string{}
	}
	if err != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				resp.Rejected = append(resp.Rejected, e.Error())
			}
		} else {
			resp.Rejected = []string{err.Error()}
		}
	}

	c.JSON(http.StatusAccepted, resp)
}

// MarkCompleted handles POST /api/v1/queues/:variant/jobs/:job_id/mark-completed
func (h *JobHandler) MarkCompleted(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	job, err := ctrl.MarkCompleted(c.Param("job_id"))
	if err != nil {
		h.writeError(c, "mark job completed", err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// MarkFailed handles POST /api/v1/queues/:variant/jobs/:job_id/mark-failed
func (h *JobHandler) MarkFailed(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	job, err := ctrl.MarkFailed(c.Param("job_id"))
	if err != nil {
		h.writeError(c, "mark job failed", err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// DeleteJob handles DELETE /api/v1/queues/:variant/jobs/:job_id?confirm=true
func (h *JobHandler) DeleteJob(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	confirmed, ok := confirmation(c)
	if !ok {
		return
	}

	job, err := ctrl.Delete(c.Param("job_id"), confirmed)
	if err != nil {
		h.writeError(c, "delete job", err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// ClearJobs handles DELETE /api/v1/queues/:variant/jobs?confirm=true
func (h *JobHandler) ClearJobs(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	confirmed, ok := confirmation(c)
	if !ok {
		return
	}

	n, err := ctrl.Clear(confirmed)
	if err != nil {
		h.writeError(c, "clear queue", err)
		return
	}

	c.JSON(http.StatusOK, dto.RemovedResponse{Removed: n})
}

// ClearTerminal handles DELETE /api/v1/queues/:variant/jobs/terminal?confirm=true
func (h *JobHandler) ClearTerminal(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	confirmed, ok := confirmation(c)
	if !ok {
		return
	}

	n, err := ctrl.ClearTerminal(confirmed)
	if err != nil {
		h.writeError(c, "clear finished jobs", err)
		return
	}

	c.JSON(http.StatusOK, dto.RemovedResponse{Removed: n})
}

func confirmation(c *gin.Context) (bool, bool) {
	var req dto.ConfirmRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "confirm must be a boolean",
		})
		return false, false
	}
	return req.Confirm, true
}

// Summary handles GET /api/v1/queues/:variant/summary
func (h *JobHandler) Summary(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, ctrl.Summary())
}

// Limits handles GET /api/v1/queues/:variant/limits?job_type=&collector=
func (h *JobHandler) Limits(c *gin.Context) {
	ctrl, ok := h.queue(c)
	if !ok {
		return
	}

	var req dto.LimitsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	limits, err := ctrl.Limits(domain.JobType(req.JobType), domain.Collector(req.Collector))
	if err != nil {
		h.writeError(c, "compute limits", err)
		return
	}

	c.JSON(http.StatusOK, dto.LimitsResponse{
		JobType:   string(limits.JobType),
		Collector: string(limits.Collector),
		Today:     limits.Today.Format(domain.DateLayout),
		Limit:     limits.Limit.Format(domain.DateLayout),
		LagDays:   limits.LagDays,
	})
}
