package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/evidence"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/rollover"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/task"
)

type TaskHandler struct {
	tasks     *task.Service
	evaluator *rollover.Evaluator
	members   *store.MemberStore
	clock     clock.Clock
	logger    *slog.Logger
}

func NewTaskHandler(tasks *task.Service, evaluator *rollover.Evaluator, members *store.MemberStore, clk clock.Clock, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, evaluator: evaluator, members: members, clock: clk, logger: logger}
}

type taskRequest struct {
	Title          string     `json:"title" validate:"required"`
	Description    string     `json:"description"`
	DueDate        *time.Time `json:"due_date"`
	EndDate        *time.Time `json:"end_date"`
	Duration       string     `json:"duration"`
	AssigneeID     *int64     `json:"assignee_id" validate:"required"`
	IsDaily        bool       `json:"is_daily"`
	ReminderActive bool       `json:"reminder_active"`
	Points         int        `json:"points" validate:"gte=0"`
	MissionType    string     `json:"mission_type" validate:"omitempty,oneof=mandatory optional"`
}

func (req taskRequest) toTask() model.Task {
	return model.Task{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		DueDate:        req.DueDate,
		EndDate:        req.EndDate,
		Duration:       req.Duration,
		AssigneeID:     req.AssigneeID,
		IsDaily:        req.IsDaily,
		ReminderActive: req.ReminderActive,
		Points:         req.Points,
		MissionType:    model.MissionType(req.MissionType),
	}
}

// decodeTask reads and checks a task payload, writing a 400 on failure.
func (h *TaskHandler) decodeTask(w http.ResponseWriter, r *http.Request) (model.Task, bool) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return model.Task{}, false
	}
	t := req.toTask()
	if t.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return t, false
	}
	if t.DueDate != nil && t.EndDate != nil && t.EndDate.Before(*t.DueDate) {
		writeError(w, http.StatusBadRequest, "end_date must not be before due_date")
		return t, false
	}

	member, err := h.members.GetByID(*t.AssigneeID)
	if err != nil {
		h.logger.Error("check assignee", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check assignee")
		return t, false
	}
	if member == nil {
		writeError(w, http.StatusBadRequest, "assignee not found")
		return t, false
	}
	return t, true
}

// List handles GET /api/tasks. The penalty and streak pass runs first so the
// list reflects today's state.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.evaluator != nil {
		if _, err := h.evaluator.Run(r.Context()); err != nil {
			h.logger.Warn("evaluate before list", "error", err)
		}
	}

	tasks, err := h.tasks.List(r.Context())
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.TaskWithAssignee{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Get handles GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	t, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "get task", err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, task.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Create handles POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := h.decodeTask(w, r)
	if !ok {
		return
	}
	created, err := h.tasks.Create(r.Context(), actor(r), t)
	if err != nil {
		writeServiceError(w, h.logger, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	t, ok := h.decodeTask(w, r)
	if !ok {
		return
	}
	t.ID = id
	updated, err := h.tasks.Update(r.Context(), actor(r), t)
	if err != nil {
		writeServiceError(w, h.logger, "update task", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.tasks.Delete(r.Context(), actor(r), id); err != nil {
		writeServiceError(w, h.logger, "delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /api/tasks/{id}/complete
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.completion(w, r, "complete task", h.tasks.Complete)
}

// Uncomplete handles POST /api/tasks/{id}/uncomplete
func (h *TaskHandler) Uncomplete(w http.ResponseWriter, r *http.Request) {
	h.completion(w, r, "uncomplete task", h.tasks.Uncomplete)
}

// Toggle handles POST /api/tasks/{id}/toggle
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.completion(w, r, "toggle task", h.tasks.Toggle)
}

type completionFunc func(ctx context.Context, a task.Actor, taskID int64) (*task.Completion, error)

func (h *TaskHandler) completion(w http.ResponseWriter, r *http.Request, op string, fn completionFunc) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	c, err := fn(r.Context(), actor(r), id)
	if err != nil {
		writeServiceError(w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Steal handles POST /api/tasks/{id}/steal
func (h *TaskHandler) Steal(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	t, err := h.tasks.Steal(r.Context(), actor(r), id)
	if err != nil {
		writeServiceError(w, h.logger, "steal task", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ToggleReminder handles POST /api/tasks/{id}/reminder
func (h *TaskHandler) ToggleReminder(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	t, err := h.tasks.ToggleReminder(r.Context(), actor(r), id)
	if err != nil {
		writeServiceError(w, h.logger, "toggle reminder", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Evidence handles POST /api/tasks/{id}/evidence with a multipart "photo"
// field. The photo is stored and the task completed.
func (h *TaskHandler) Evidence(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, evidence.MaxUploadSize+1<<20)
	file, header, err := r.FormFile("photo")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, evidence.ErrTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "photo is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, evidence.MaxUploadSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read photo")
		return
	}
	if len(data) > evidence.MaxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, evidence.ErrTooLarge.Error())
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	c, err := h.tasks.CompleteWithEvidence(r.Context(), actor(r), id, header.Filename, contentType, data)
	if err != nil {
		writeServiceError(w, h.logger, "complete with evidence", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Calendar handles GET /api/calendar?month=YYYY-MM. The current month is the
// default.
func (h *TaskHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	year, month := now.Year(), now.Month()
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := time.ParseInLocation("2006-01", v, h.clock.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		year, month = m.Year(), m.Month()
	}

	tasks, err := h.tasks.List(r.Context())
	if err != nil {
		h.logger.Error("list tasks for calendar", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month": time.Date(year, month, 1, 0, 0, 0, 0, h.clock.Location()).Format("2006-01"),
		"days":  task.BuildCalendar(tasks, year, month, h.clock),
	})
}
