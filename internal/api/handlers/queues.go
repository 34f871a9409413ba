package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sshprint/internal/core"
)

type QueueHandler struct {
	poller *core.QueuePoller
}

func NewQueueHandler(poller *core.QueuePoller) *QueueHandler {
	return &QueueHandler{poller: poller}
}

func (h *QueueHandler) ListQueues(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"queues":    h.poller.Queues(),
		"snapshots": h.poller.Snapshots(),
	})
}

func (h *QueueHandler) GetQueue(c *gin.Context) {
	name := c.Param("name")

	snapshot, ok := h.poller.Snapshot(name)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "No snapshot for queue " + name,
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// Refresh triggers an immediate poll round. A round already in flight
// is not duplicated; the caller is told their request coalesced into it.
func (h *QueueHandler) Refresh(c *gin.Context) {
	started := h.poller.RefreshNow()

	c.JSON(http.StatusAccepted, gin.H{
		"started":   started,
		"coalesced": !started,
	})
}

func (h *QueueHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/queues", h.ListQueues)
	r.GET("/queues/:name", h.GetQueue)
	r.POST("/queues/refresh", h.Refresh)
}
