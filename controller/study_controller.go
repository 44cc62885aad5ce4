package controller

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github/itish2003/studybuddy/models"
	"github/itish2003/studybuddy/services"
)

// StudyController serves the to-do list and mood log.
type StudyController struct {
	sessions *services.SessionManager
	moods    *services.MoodTracker
}

func NewStudyController(sessions *services.SessionManager, moods *services.MoodTracker) *StudyController {
	return &StudyController{sessions: sessions, moods: moods}
}

func taskList(s *services.Session) models.TaskListResponse {
	resp := models.TaskListResponse{Tasks: s.Tasks.List(), SessionID: s.ID}
	if current, ok := s.Tasks.Current(); ok {
		resp.Current = &current
	}
	return resp
}

// ListTasks handles GET /api/v1/tasks.
func (c *StudyController) ListTasks(ctx *gin.Context) {
	s := session(ctx, c.sessions, "")
	ctx.JSON(http.StatusOK, taskList(s))
}

// AddTask handles POST /api/v1/tasks.
func (c *StudyController) AddTask(ctx *gin.Context) {
	var req models.AddTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}
	s := session(ctx, c.sessions, "")

	if _, err := s.Tasks.Add(ctx.Request.Context(), req.Task); err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyTask):
			ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Task cannot be empty.", SessionID: s.ID})
		case errors.Is(err, services.ErrDuplicateTask):
			ctx.JSON(http.StatusConflict, models.ErrorResponse{Error: "Task already exists!", SessionID: s.ID})
		default:
			ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to add task", SessionID: s.ID})
		}
		return
	}
	ctx.JSON(http.StatusCreated, taskList(s))
}

// ToggleTask handles PATCH /api/v1/tasks/:index.
func (c *StudyController) ToggleTask(ctx *gin.Context) {
	s := session(ctx, c.sessions, "")

	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Task index must be a number", SessionID: s.ID})
		return
	}
	if _, err := s.Tasks.Toggle(ctx.Request.Context(), index); err != nil {
		ctx.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Task not found", SessionID: s.ID})
		return
	}
	ctx.JSON(http.StatusOK, taskList(s))
}

// RecordMood handles POST /api/v1/moods. The label comes from an external
// emotion classifier; an empty label is recorded as Neutral.
func (c *StudyController) RecordMood(ctx *gin.Context) {
	var req models.RecordMoodRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}
	emotion, err := c.moods.Record(ctx.Request.Context(), req.Emotion)
	if err != nil {
		log.Printf("CONTROLLER ERROR: %v", err)
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to record emotion"})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"emotion": emotion})
}

// MoodSummary handles GET /api/v1/moods/summary.
func (c *StudyController) MoodSummary(ctx *gin.Context) {
	report, err := c.moods.Evaluate(ctx.Request.Context())
	if err != nil {
		log.Printf("CONTROLLER ERROR: %v", err)
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to evaluate mood"})
		return
	}
	ctx.JSON(http.StatusOK, report)
}
