package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sshprint/internal/archive"
	"sshprint/internal/db"
)

type ArchiveHandler struct {
	archiver *archive.Archiver
}

func NewArchiveHandler(archiver *archive.Archiver) *ArchiveHandler {
	return &ArchiveHandler{archiver: archiver}
}

func (h *ArchiveHandler) ListArchivedJobs(c *gin.Context) {
	limit := 50
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	records, err := db.Archive.GetArchiveJobs(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list archived jobs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"archived": records,
		"count":    len(records),
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *ArchiveHandler) TriggerArchive(c *gin.Context) {
	if err := h.archiver.RunArchive(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "archive completed with errors",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "archive completed successfully"})
}

func (h *ArchiveHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/archives", h.ListArchivedJobs)
	r.POST("/archives/run", h.TriggerArchive)
}
