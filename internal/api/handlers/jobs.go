package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"sshprint/internal/config"
	"sshprint/internal/core"
	"sshprint/internal/db"
)

const settingsKeyDefaultQueue = "default_queue"

type SubmitJobRequest struct {
	FilePath string              `json:"file_path" binding:"required"`
	Queue    string              `json:"queue"`
	Settings *core.PrintSettings `json:"settings"`
}

type SubmitJobResponse struct {
	Jobs   []*core.PrintJob  `json:"jobs"`
	Result core.SubmitResult `json:"result"`
}

type ListJobsQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"max=500"`
}

type JobHandler struct {
	store        *core.JobStore
	orchestrator *core.Orchestrator
	config       *config.Config
}

func NewJobHandler(store *core.JobStore, orchestrator *core.Orchestrator, cfg *config.Config) *JobHandler {
	return &JobHandler{
		store:        store,
		orchestrator: orchestrator,
		config:       cfg,
	}
}

func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if _, err := os.Stat(req.FilePath); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "file_not_found",
			Message: "File does not exist: " + req.FilePath,
		})
		return
	}

	queue := req.Queue
	if queue == "" {
		queue = h.defaultQueue()
	}
	if queue == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "no_queue",
			Message: "No queue specified and no default queue configured",
		})
		return
	}

	if err := h.validateQueue(queue); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unknown_queue",
			Message: err.Error(),
		})
		return
	}

	settings := core.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	jobs, result, err := h.orchestrator.Submit(c.Request.Context(), req.FilePath, queue, settings)
	if err != nil {
		var submitErr *core.SubmitError
		if errors.As(err, &submitErr) {
			// Some copies may still have gone through; report both sides.
			c.JSON(http.StatusMultiStatus, SubmitJobResponse{Jobs: jobs, Result: result})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "submit_failed",
			Message: err.Error(),
		})
		return
	}

	// A real submission supersedes any draft saved for the same file.
	db.Drafts.DeleteDraft(c.Request.Context(), req.FilePath)

	c.JSON(http.StatusCreated, SubmitJobResponse{Jobs: jobs, Result: result})
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var query ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	jobs := h.store.List()

	if query.Status != "" {
		filtered := make([]*core.PrintJob, 0, len(jobs))
		for _, job := range jobs {
			if string(job.Status) == query.Status {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	if query.Limit > 0 && len(jobs) > query.Limit {
		jobs = jobs[:query.Limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Job not found",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) CancelJob(c *gin.Context) {
	err := h.orchestrator.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrJobNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Job not found",
			})
		case errors.Is(err, core.ErrJobTerminal):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "job_terminal",
				Message: err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "cancel_failed",
				Message: err.Error(),
			})
		}
		return
	}

	job, _ := h.store.Get(c.Param("id"))
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) DeleteJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.store.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Job not found",
		})
		return
	}

	if !job.Status.Terminal() {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "job_active",
			Message: "Cannot delete a job that is still in flight; cancel it first",
		})
		return
	}

	if err := h.store.Remove(id); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *JobHandler) defaultQueue() string {
	if setting, err := db.Settings.GetSetting(context.Background(), settingsKeyDefaultQueue); err == nil && setting.Value != "" {
		return setting.Value
	}
	return h.config.Queues.Default
}

func (h *JobHandler) validateQueue(queue string) error {
	known := h.config.Queues.Known
	if len(known) == 0 {
		return nil
	}
	for _, q := range known {
		if q == queue {
			return nil
		}
	}
	return core.ErrUnknownQueue
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/jobs", h.ListJobs)
	r.POST("/jobs", h.SubmitJob)
	r.GET("/jobs/:id", h.GetJob)
	r.POST("/jobs/:id/cancel", h.CancelJob)
	r.DELETE("/jobs/:id", h.DeleteJob)
}
