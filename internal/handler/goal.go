package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorequest/internal/goal"
)

type GoalHandler struct {
	goals  *goal.Service
	logger *slog.Logger
}

func NewGoalHandler(goals *goal.Service, logger *slog.Logger) *GoalHandler {
	return &GoalHandler{goals: goals, logger: logger}
}

// List handles GET /api/goals
func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goals.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list goals", err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

// Create handles POST /api/goals
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string `json:"title" validate:"required"`
		TargetPoints int    `json:"target_points" validate:"gte=0"`
		Emoji        string `json:"emoji"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := h.goals.Create(r.Context(), req.Title, req.TargetPoints, req.Emoji)
	if err != nil {
		writeServiceError(w, h.logger, "create goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// Delete handles DELETE /api/goals/{id}
func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.goals.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "delete goal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Activate handles POST /api/goals/{id}/activate
func (h *GoalHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	g, err := h.goals.Activate(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "activate goal", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Redeem handles POST /api/goals/{id}/redeem
func (h *GoalHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	g, err := h.goals.Redeem(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "redeem goal", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
