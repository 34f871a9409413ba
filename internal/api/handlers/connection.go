package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"sshprint/internal/api/middleware"
	"sshprint/internal/config"
	"sshprint/internal/db"
	"sshprint/internal/session"
)

const settingsKeySSHPassword = "ssh_password"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type ConnectRequest struct {
	Password string `json:"password"`
}

type ConnectionHandler struct {
	manager *session.Manager
	config  *config.Config
}

func NewConnectionHandler(manager *session.Manager, cfg *config.Config) *ConnectionHandler {
	return &ConnectionHandler{
		manager: manager,
		config:  cfg,
	}
}

// Connect kicks off a connection attempt and returns immediately; the
// retry loop can take tens of seconds and progress is observable via
// the status endpoint and the event stream.
func (h *ConnectionHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: err.Error(),
			})
			return
		}
	}

	status := h.manager.Status()
	switch status.State {
	case session.StateConnecting:
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "already_connecting",
			Message: "A connection attempt is already in progress",
		})
		return
	case session.StateConnected:
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "already_connected",
			Message: "Already connected",
		})
		return
	}

	if h.config.Connection.Host == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "not_configured",
			Message: "No remote host configured",
		})
		return
	}

	password := req.Password
	if password == "" && h.config.Connection.UsePassword {
		password = h.storedPassword()
	}

	go func() {
		if err := h.manager.Connect(h.config.Connection, password); err != nil {
			log.Printf("[api] connect failed: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, h.manager.Status())
}

func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	if err := h.manager.Disconnect(); err != nil {
		if errors.Is(err, session.ErrAlreadyConnecting) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "connecting",
				Message: "Cannot disconnect while a connection attempt is in progress",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "disconnect_failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, h.manager.Status())
}

func (h *ConnectionHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Status())
}

// storedPassword resolves the SSH password saved through the settings
// API. The keyring fallback inside the ssh client still applies when
// nothing is stored here.
func (h *ConnectionHandler) storedPassword() string {
	setting, err := db.Settings.GetSetting(context.Background(), settingsKeySSHPassword)
	if err != nil {
		return ""
	}
	if !setting.Encrypted {
		return setting.Value
	}
	password, err := middleware.DecryptSetting(setting.Value)
	if err != nil {
		log.Printf("[api] failed to decrypt stored ssh password: %v", err)
		return ""
	}
	return password
}

func (h *ConnectionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/connection", h.Status)
	r.POST("/connection/connect", h.Connect)
	r.POST("/connection/disconnect", h.Disconnect)
}
