// Package server exposes the task store and the rewrite pipeline over HTTP.
package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/amirbrooks/focuslist/internal/rewrite"
	"github.com/amirbrooks/focuslist/internal/store"
)

// Server is the focuslist HTTP API.
type Server struct {
	ws       *store.Workspace
	rewriter *rewrite.Rewriter
	logger   *log.Logger
	now      func() time.Time
	router   *gin.Engine
}

// NewServer wires the routes. A nil logger means log.Default().
func NewServer(ws *store.Workspace, rw *rewrite.Rewriter, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
		ExposeHeaders:   []string{"X-Rewrite-Source", "X-Rewrite-Repaired"},
		MaxAge:          12 * time.Hour,
	}))

	s := &Server{
		ws:       ws,
		rewriter: rw,
		logger:   logger,
		now:      time.Now,
		router:   router,
	}

	router.GET("/health", s.handleHealth)

	tasks := router.Group("/tasks")
	{
		tasks.GET("", s.handleListTasks)
		tasks.POST("", s.handleCreateTask)
		tasks.GET("/:id", s.handleGetTask)
		tasks.PATCH("/:id", s.handleUpdateTask)
		tasks.DELETE("/:id", s.handleDeleteTask)
		tasks.PATCH("/:id/toggle-complete", s.handleToggle(s.ws.ToggleComplete))
		tasks.PATCH("/:id/toggle-pin", s.handleToggle(s.ws.TogglePin))
		tasks.PATCH("/:id/toggle-archive", s.handleToggle(s.ws.ToggleArchive))
	}

	ai := router.Group("/ai")
	{
		ai.POST("/rewrite", s.handleRewrite)
		ai.GET("/test", s.handleTestConnection)
	}

	router.GET("/settings", s.handleGetSettings)
	router.PUT("/settings", s.handleSaveSettings)
	router.GET("/focus", s.handleFocus)
	router.POST("/seed", s.handleSeed)

	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server.
func (s *Server) Run(addr string) error {
	s.logger.Printf("focuslist api listening on %s", addr)
	return s.router.Run(addr)
}
