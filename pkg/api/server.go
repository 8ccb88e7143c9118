// Package api exposes the session/task/tree HTTP surface over gin.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prismbench/search/pkg/config"
	"github.com/prismbench/search/pkg/services"
)

// Server wires the HTTP layer to the session and task services.
type Server struct {
	sessions *services.SessionService
	tasks    *services.TaskService
	settings *config.Settings
}

// NewServer builds a Server over the given services and configuration.
func NewServer(sessions *services.SessionService, tasks *services.TaskService, settings *config.Settings) *Server {
	return &Server{sessions: sessions, tasks: tasks, settings: settings}
}

// RegisterRoutes mounts the session/task/tree routes onto router.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.Use(recoverMiddleware())

	v1 := router.Group("/v1")
	v1.POST("/initialize", s.handleInitialize)
	v1.GET("/sessions/:session_id", s.handleGetSession)
	v1.POST("/run", s.handleRun)
	v1.POST("/stop/:task_id", s.handleStop)
	v1.GET("/status", s.handleStatus)
	v1.GET("/tasks/:task_id", s.handleGetTask)
	v1.GET("/tree/:session_id", s.handleGetTree)
	v1.GET("/health", s.handleHealth)
}

// NewRouter builds a ready-to-serve gin.Engine with every route registered,
// the single entrypoint cmd/prismbench/main.go calls.
func NewRouter(sessions *services.SessionService, tasks *services.TaskService, settings *config.Settings) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	srv := NewServer(sessions, tasks, settings)
	srv.RegisterRoutes(router)
	return router
}
