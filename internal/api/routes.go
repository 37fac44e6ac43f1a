package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hearthside/companion/domain/entities"
	"github.com/hearthside/companion/domain/repositories"
	"github.com/hearthside/companion/internal/websocket"
	"github.com/hearthside/companion/usecase"
)

// Handlers bundles the services the dashboard API depends on.
type Handlers struct {
	store     repositories.Store
	dashboard *usecase.DashboardService
	status    *usecase.StatusService
	stt       repositories.SpeechToText
	logger    *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	store repositories.Store,
	dashboard *usecase.DashboardService,
	status *usecase.StatusService,
	stt repositories.SpeechToText,
	metricsHandler http.Handler,
	logger *zap.Logger,
) {
	h := &Handlers{
		store:     store,
		dashboard: dashboard,
		status:    status,
		stt:       stt,
		logger:    logger,
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "companion-server",
		})
	})

	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Routine tasks
	v1.GET("/tasks", h.listTasks)
	v1.POST("/tasks", h.createTask)
	v1.PATCH("/tasks/:id", h.updateTask)
	v1.POST("/tasks/:id/toggle", h.toggleTask)
	v1.DELETE("/tasks/:id", h.deleteTask)

	// Journal
	v1.GET("/journal", h.listJournal)
	v1.POST("/journal", h.createJournal)
	v1.POST("/journal/voice", h.createVoiceJournal)
	v1.DELETE("/journal/:id", h.deleteJournal)

	// Appointments
	v1.GET("/appointments", h.listAppointments)
	v1.POST("/appointments", h.createAppointment)
	v1.DELETE("/appointments/:id", h.deleteAppointment)

	// Counters
	v1.POST("/water", h.addWater)
	v1.POST("/checks", h.recordCheck)

	// Dashboard status
	v1.GET("/status", h.getStatus)

	// WebSocket endpoint for the companion session
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

func (h *Handlers) listTasks(c echo.Context) error {
	tasks, err := h.store.Tasks().List(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list tasks", zap.Error(err))
		return internalError(c, "failed to list tasks")
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *Handlers) createTask(c echo.Context) error {
	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	task := entities.NewTask(req.Text, entities.TaskType(req.Type))
	task.Time = req.Time
	if err := task.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.store.Tasks().Create(c.Request().Context(), task); err != nil {
		h.logger.Error("Failed to create task", zap.Error(err))
		return internalError(c, "failed to create task")
	}
	return c.JSON(http.StatusCreated, task)
}

// updateTask applies a partial edit. Completion changes made here do
// not award stars; the toggle endpoint carries the reward semantics.
func (h *Handlers) updateTask(c echo.Context) error {
	var req UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	ctx := c.Request().Context()
	task, err := h.store.Tasks().GetByID(ctx, c.Param("id"))
	if err != nil {
		if isNotFound(err) {
			return notFound(c, "task not found")
		}
		h.logger.Error("Failed to load task", zap.Error(err))
		return internalError(c, "failed to update task")
	}

	if req.Text != nil {
		task.Text = *req.Text
	}
	if req.Type != nil {
		task.Type = entities.TaskType(*req.Type)
	}
	if req.Time != nil {
		task.Time = *req.Time
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}
	if err := task.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.store.Tasks().Update(ctx, task); err != nil {
		h.logger.Error("Failed to update task", zap.Error(err))
		return internalError(c, "failed to update task")
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handlers) toggleTask(c echo.Context) error {
	task, counters, err := h.dashboard.ToggleTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		if isNotFound(err) {
			return notFound(c, "task not found")
		}
		h.logger.Error("Failed to toggle task", zap.Error(err))
		return internalError(c, "failed to toggle task")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"task":     task,
		"counters": counters,
	})
}

func (h *Handlers) deleteTask(c echo.Context) error {
	if err := h.store.Tasks().Delete(c.Request().Context(), c.Param("id")); err != nil {
		if isNotFound(err) {
			return notFound(c, "task not found")
		}
		h.logger.Error("Failed to delete task", zap.Error(err))
		return internalError(c, "failed to delete task")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) listJournal(c echo.Context) error {
	entries, err := h.store.Journal().List(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list journal entries", zap.Error(err))
		return internalError(c, "failed to list journal entries")
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handlers) createJournal(c echo.Context) error {
	var req CreateJournalRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	entry := entities.NewJournalEntry(req.Text)
	if err := entry.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.store.Journal().Create(c.Request().Context(), entry); err != nil {
		h.logger.Error("Failed to create journal entry", zap.Error(err))
		return internalError(c, "failed to create journal entry")
	}
	return c.JSON(http.StatusCreated, entry)
}

// createVoiceJournal transcribes a recorded note and files it as a
// voice journal entry.
func (h *Handlers) createVoiceJournal(c echo.Context) error {
	var req CreateVoiceJournalRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	audio, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil || len(audio) == 0 {
		return badRequest(c, "audio_data must be non-empty base64")
	}

	config := repositories.AudioConfig{
		SampleRate: req.SampleRate,
		Encoding:   req.Encoding,
		Language:   req.Language,
	}
	if config.SampleRate == 0 {
		config.SampleRate = 16000
	}
	if config.Encoding == "" {
		config.Encoding = "LINEAR16"
	}
	if config.Language == "" {
		config.Language = "en-US"
	}

	text, err := h.stt.TranscribeAudio(c.Request().Context(), audio, config)
	if err != nil {
		h.logger.Error("Failed to transcribe voice note", zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "transcription_failed",
			Message: err.Error(),
		})
	}

	entry := entities.NewJournalEntry(text)
	entry.Voice = true
	if err := h.store.Journal().Create(c.Request().Context(), entry); err != nil {
		h.logger.Error("Failed to create voice journal entry", zap.Error(err))
		return internalError(c, "failed to create journal entry")
	}
	return c.JSON(http.StatusCreated, entry)
}

func (h *Handlers) deleteJournal(c echo.Context) error {
	if err := h.store.Journal().Delete(c.Request().Context(), c.Param("id")); err != nil {
		if isNotFound(err) {
			return notFound(c, "journal entry not found")
		}
		h.logger.Error("Failed to delete journal entry", zap.Error(err))
		return internalError(c, "failed to delete journal entry")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) listAppointments(c echo.Context) error {
	appointments, err := h.store.Appointments().List(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list appointments", zap.Error(err))
		return internalError(c, "failed to list appointments")
	}
	return c.JSON(http.StatusOK, appointments)
}

func (h *Handlers) createAppointment(c echo.Context) error {
	var req CreateAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	apptType := entities.AppointmentType(req.Type)
	if apptType == "" {
		apptType = entities.AppointmentTypeGeneral
	}
	appt := &entities.Appointment{
		Date:        req.Date,
		Time:        req.Time,
		Title:       req.Title,
		Location:    req.Location,
		Description: req.Description,
		Type:        apptType,
	}
	if err := appt.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	if err := appt.ParseWhen(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.store.Appointments().Create(c.Request().Context(), appt); err != nil {
		h.logger.Error("Failed to create appointment", zap.Error(err))
		return internalError(c, "failed to create appointment")
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handlers) deleteAppointment(c echo.Context) error {
	if err := h.store.Appointments().Delete(c.Request().Context(), c.Param("id")); err != nil {
		if isNotFound(err) {
			return notFound(c, "appointment not found")
		}
		h.logger.Error("Failed to delete appointment", zap.Error(err))
		return internalError(c, "failed to delete appointment")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) addWater(c echo.Context) error {
	counters, err := h.dashboard.AddWater(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to add water", zap.Error(err))
		return internalError(c, "failed to add water")
	}
	return c.JSON(http.StatusOK, counters)
}

func (h *Handlers) recordCheck(c echo.Context) error {
	counters, err := h.dashboard.RecordCheck(c.Request().Context(), time.Now())
	if err != nil {
		h.logger.Error("Failed to record check-in", zap.Error(err))
		return internalError(c, "failed to record check-in")
	}
	return c.JSON(http.StatusOK, counters)
}

func (h *Handlers) getStatus(c echo.Context) error {
	ctx := c.Request().Context()
	snap, err := h.status.Snapshot(ctx)
	if err != nil {
		h.logger.Error("Failed to build status snapshot", zap.Error(err))
		return internalError(c, "failed to build status")
	}
	counters, err := h.store.Counters().Get(ctx)
	if err != nil {
		h.logger.Error("Failed to load counters", zap.Error(err))
		return internalError(c, "failed to build status")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"snapshot": snap,
		"counters": counters,
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, repositories.ErrNotFound)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}

func notFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: message,
	})
}

func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: message,
	})
}
