package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sshprint/internal/core"
)

type EventHandler struct {
	bus *core.Bus
}

func NewEventHandler(bus *core.Bus) *EventHandler {
	return &EventHandler{bus: bus}
}

// ListEvents returns buffered events after the given sequence number,
// letting clients poll for changes without missing anything between
// polls. The buffer is bounded; a client that falls too far behind
// should resync from the jobs and queues endpoints.
func (h *EventHandler) ListEvents(c *gin.Context) {
	var since int64
	if v := c.Query("since"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "since must be an integer sequence number",
			})
			return
		}
		since = parsed
	}

	events := h.bus.Since(since)

	var lastSeq int64 = since
	if len(events) > 0 {
		lastSeq = events[len(events)-1].Seq
	}

	c.JSON(http.StatusOK, gin.H{
		"events":   events,
		"count":    len(events),
		"last_seq": lastSeq,
	})
}

func (h *EventHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/events", h.ListEvents)
}
