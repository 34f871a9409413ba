package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"sshprint/internal/api/handlers"
	"sshprint/internal/api/middleware"
	"sshprint/internal/archive"
	"sshprint/internal/config"
	"sshprint/internal/core"
	"sshprint/internal/session"
)

// Deps carries everything the HTTP layer needs. The router holds no
// domain logic of its own; every route delegates to one of these.
type Deps struct {
	Config       *config.Config
	Manager      *session.Manager
	Store        *core.JobStore
	Orchestrator *core.Orchestrator
	Poller       *core.QueuePoller
	Bus          *core.Bus
	Archiver     *archive.Archiver
}

type Server struct {
	engine *gin.Engine
	server *http.Server
}

func NewServer(deps Deps) (*Server, error) {
	auth, err := middleware.NewAuth()
	if err != nil {
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	if deps.Config.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := engine.Group("/api/auth")
	{
		authGroup.POST("/setup", auth.Setup)
		authGroup.POST("/login", auth.Login)
		authGroup.POST("/logout", auth.Logout)
		authGroup.GET("/status", auth.Status)
		authGroup.PUT("/password", auth.RequireAuth(), auth.ChangePassword)
	}

	apiGroup := engine.Group("/api", auth.RequireAuth())

	handlers.NewConnectionHandler(deps.Manager, deps.Config).RegisterRoutes(apiGroup)
	handlers.NewJobHandler(deps.Store, deps.Orchestrator, deps.Config).RegisterRoutes(apiGroup)
	handlers.NewQueueHandler(deps.Poller).RegisterRoutes(apiGroup)
	handlers.NewDraftHandler().RegisterRoutes(apiGroup)
	handlers.NewEventHandler(deps.Bus).RegisterRoutes(apiGroup)
	handlers.NewWebhookHandler().RegisterRoutes(apiGroup)
	handlers.NewSettingsHandler(deps.Config).RegisterRoutes(apiGroup)
	handlers.NewArchiveHandler(deps.Archiver).RegisterRoutes(apiGroup)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", deps.Config.Server.Port),
		Handler:      engine,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
	}

	return &Server{engine: engine, server: server}, nil
}

func (s *Server) Start() error {
	log.Printf("[api] listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() >= 400 {
			log.Printf("[api] %s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
		}
	}
}
