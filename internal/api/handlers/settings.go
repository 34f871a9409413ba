package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sshprint/internal/api/middleware"
	"sshprint/internal/config"
	"sshprint/internal/db"
)

type SettingsHandler struct {
	config *config.Config
}

type SettingsResponse struct {
	DefaultQueue   string   `json:"default_queue"`
	KnownQueues    []string `json:"known_queues"`
	HasSSHPassword bool     `json:"has_ssh_password"`
	ArchiveDays    int      `json:"archive_days"`
}

type SetDefaultQueueRequest struct {
	Queue string `json:"queue" binding:"required"`
}

type SetSSHPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

type ServerConfigResponse struct {
	Port           int    `json:"port"`
	Host           string `json:"ssh_host"`
	SSHPort        int    `json:"ssh_port"`
	Username       string `json:"ssh_username"`
	DatabasePath   string `json:"database_path"`
	ArchivePath    string `json:"archive_path"`
	PollInterval   string `json:"poll_interval"`
	MaxAttempts    int    `json:"max_attempts"`
	RetryBaseDelay string `json:"retry_base_delay"`
	StagingDir     string `json:"staging_dir"`
	LogLevel       string `json:"log_level"`
}

func NewSettingsHandler(cfg *config.Config) *SettingsHandler {
	return &SettingsHandler{config: cfg}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()

	resp := SettingsResponse{
		DefaultQueue: h.config.Queues.Default,
		KnownQueues:  h.config.Queues.Known,
		ArchiveDays:  h.config.Database.ArchiveDays,
	}
	if resp.KnownQueues == nil {
		resp.KnownQueues = []string{}
	}

	if setting, err := db.Settings.GetSetting(ctx, settingsKeyDefaultQueue); err == nil && setting.Value != "" {
		resp.DefaultQueue = setting.Value
	}

	if _, err := db.Settings.GetSetting(ctx, settingsKeySSHPassword); err == nil {
		resp.HasSSHPassword = true
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SettingsHandler) SetDefaultQueue(c *gin.Context) {
	var req SetDefaultQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if len(h.config.Queues.Known) > 0 {
		found := false
		for _, q := range h.config.Queues.Known {
			if q == req.Queue {
				found = true
				break
			}
		}
		if !found {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "unknown_queue",
				Message: "Queue is not in the known queue list",
			})
			return
		}
	}

	if err := db.Settings.SetSetting(c.Request.Context(), settingsKeyDefaultQueue, req.Queue, false); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to update default queue",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"default_queue": req.Queue,
	})
}

// SetSSHPassword stores the remote password encrypted under the server
// secret, as the fallback for connects that do not carry a password in
// the request body.
func (h *SettingsHandler) SetSSHPassword(c *gin.Context) {
	var req SetSSHPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	encrypted, err := middleware.EncryptSetting(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "encryption_error",
			Message: "Failed to encrypt password",
		})
		return
	}

	if err := db.Settings.SetSetting(c.Request.Context(), settingsKeySSHPassword, encrypted, true); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to store password",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SettingsHandler) DeleteSSHPassword(c *gin.Context) {
	if _, err := db.Settings.GetSetting(c.Request.Context(), settingsKeySSHPassword); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to check stored password",
		})
		return
	}

	if err := db.Settings.DeleteSetting(c.Request.Context(), settingsKeySSHPassword); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to delete stored password",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SettingsHandler) GetServerConfig(c *gin.Context) {
	resp := ServerConfigResponse{
		Port:           h.config.Server.Port,
		Host:           h.config.Connection.Host,
		SSHPort:        h.config.Connection.Port,
		Username:       h.config.Connection.Username,
		DatabasePath:   h.config.Database.Path,
		ArchivePath:    h.config.Database.ArchivePath,
		PollInterval:   h.config.Poller.Interval.String(),
		MaxAttempts:    h.config.Connection.MaxAttempts,
		RetryBaseDelay: h.config.Connection.RetryBaseDelay.String(),
		StagingDir:     h.config.Staging.RemoteDir,
		LogLevel:       h.config.Logging.Level,
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SettingsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", h.GetSettings)
	r.GET("/settings/server", h.GetServerConfig)
	r.PUT("/settings/default-queue", h.SetDefaultQueue)
	r.PUT("/settings/ssh-password", h.SetSSHPassword)
	r.DELETE("/settings/ssh-password", h.DeleteSSHPassword)
}
