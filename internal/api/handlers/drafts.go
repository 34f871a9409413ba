package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sshprint/internal/core"
	"sshprint/internal/db"
)

type SaveDraftRequest struct {
	FilePath string             `json:"file_path" binding:"required"`
	Queue    string             `json:"queue"`
	Settings core.PrintSettings `json:"settings"`
}

type DraftHandler struct{}

func NewDraftHandler() *DraftHandler {
	return &DraftHandler{}
}

// SaveDraft upserts the remembered queue and settings for a file, so a
// half-configured print survives a client restart. Keyed by file path;
// saving twice for the same file overwrites.
func (h *DraftHandler) SaveDraft(c *gin.Context) {
	var req SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	draft := &core.Draft{
		FilePath:  req.FilePath,
		Queue:     req.Queue,
		Settings:  req.Settings,
		UpdatedAt: time.Now(),
	}

	if err := db.Drafts.SaveDraft(c.Request.Context(), draft); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to save draft",
		})
		return
	}

	c.JSON(http.StatusOK, draft)
}

func (h *DraftHandler) GetDraft(c *gin.Context) {
	filePath := c.Query("file_path")
	if filePath == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "file_path query parameter is required",
		})
		return
	}

	draft, err := db.Drafts.GetDraft(c.Request.Context(), filePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "No draft for " + filePath,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to get draft",
		})
		return
	}

	c.JSON(http.StatusOK, draft)
}

func (h *DraftHandler) ListDrafts(c *gin.Context) {
	drafts, err := db.Drafts.ListDrafts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list drafts",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"drafts": drafts,
		"count":  len(drafts),
	})
}

func (h *DraftHandler) DeleteDraft(c *gin.Context) {
	filePath := c.Query("file_path")
	if filePath == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "file_path query parameter is required",
		})
		return
	}

	if err := db.Drafts.DeleteDraft(c.Request.Context(), filePath); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to delete draft",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *DraftHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/drafts", h.ListDrafts)
	r.GET("/drafts/lookup", h.GetDraft)
	r.PUT("/drafts", h.SaveDraft)
	r.DELETE("/drafts", h.DeleteDraft)
}
