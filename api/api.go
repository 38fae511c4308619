// Package api exposes a small HTTP surface over the task store for
// dashboards and operational poking. Reminder delivery never goes through
// here; that is the scheduler's job.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskbot/db"
)

type Server struct {
	db     *db.Database
	logger *zap.SugaredLogger
}

func NewRouter(d *db.Database, l *zap.SugaredLogger) *gin.Engine {
	s := &Server{db: d, logger: l}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.health)
	r.GET("/tasks", s.listTasks)
	r.GET("/tasks/:code", s.getTask)
	r.PATCH("/tasks/:code/status", s.updateTaskStatus)
	r.POST("/users", s.createUser)
	r.GET("/users/:id", s.getUser)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type taskResponse struct {
	ID        int64          `json:"id"`
	Code      string         `json:"task_code"`
	Name      string         `json:"task_name"`
	ChatID    int64          `json:"chat_id"`
	DueAt     time.Time      `json:"due_at"`
	Status    db.TaskStatus  `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	Assignees []userResponse `json:"assignees,omitempty"`
}

type userResponse struct {
	ID               int64  `json:"id"`
	Username         string `json:"username,omitempty"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	ReceiveReminders bool   `json:"receive_reminders"`
}

func toTaskResponse(t db.Task) taskResponse {
	resp := taskResponse{
		ID: t.ID, Code: t.Code, Name: t.Name, ChatID: t.ChatID,
		DueAt: t.DueAt, Status: t.Status, CreatedAt: t.CreatedAt,
	}
	for _, u := range t.Assignees {
		resp.Assignees = append(resp.Assignees, toUserResponse(u))
	}
	return resp
}

func toUserResponse(u db.User) userResponse {
	return userResponse{
		ID: u.ID, Username: u.Username, FirstName: u.FirstName,
		LastName: u.LastName, ReceiveReminders: u.ReceiveReminders,
	}
}

func (s *Server) listTasks(c *gin.Context) {
	var status *db.TaskStatus
	if q := c.Query("status"); q != "" {
		st, err := db.ParseStatus(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		status = &st
	}

	tasks, err := s.db.ListTasks(c.Request.Context(), status)
	if err != nil {
		s.logger.Errorw("failed listing tasks", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.db.TaskByCode(c.Request.Context(), c.Param("code"))
	switch {
	case err == db.ErrTaskNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	case err != nil:
		s.logger.Errorw("failed fetching task", "code", c.Param("code"), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(*task))
}

type statusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) updateTaskStatus(c *gin.Context) {
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	status, err := db.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	ok, err := s.db.UpdateTaskStatus(c.Request.Context(), c.Param("code"), status)
	if err != nil {
		s.logger.Errorw("failed updating status", "code", c.Param("code"), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"task_code": c.Param("code"), "status": status})
}

type createUserRequest struct {
	ID        int64  `json:"id" binding:"required"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (s *Server) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	err := s.db.UpsertUser(c.Request.Context(), db.User{
		ID: req.ID, Username: req.Username,
		FirstName: req.FirstName, LastName: req.LastName,
	})
	if err != nil {
		s.logger.Errorw("failed upserting user", "user", req.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": req.ID})
}

func (s *Server) getUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := s.db.GetUser(c.Request.Context(), id)
	if err != nil {
		s.logger.Errorw("failed fetching user", "user", id, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, toUserResponse(*user))
}
