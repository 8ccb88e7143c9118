package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prismbench/search/pkg/mcts"
	"github.com/prismbench/search/pkg/services"
)

func (s *Server) handleInitialize(c *gin.Context) {
	var req InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	session, err := s.sessions.CreateSession(req.TreeName, s.settings.Tree)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(session))
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.sessions.GetSession(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(session))
}

func (s *Server) handleRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var resume *services.ResumeSpec
	if req.TreePicklePath != "" {
		resume = &services.ResumeSpec{
			TreePicklePath: req.TreePicklePath,
			ResumePhase:    req.ResumePhase,
			Iteration:      req.ResumeIteration,
		}
	}

	task, err := s.tasks.CreateTask(c.Request.Context(), req.SessionID, req.Phases, resume)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, newTaskResponse(task))
}

func (s *Server) handleStop(c *gin.Context) {
	if err := s.tasks.StopTask(c.Param("task_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

func (s *Server) handleStatus(c *gin.Context) {
	tasks := s.tasks.GetAllTasks()
	out := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = newTaskResponse(t)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.tasks.GetTask(c.Param("task_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleGetTree(c *gin.Context) {
	t, err := s.sessions.GetTree(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.ToMap())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Phases: mcts.ListPhases()})
}
