package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/websocket"
)

// TemplateHandler serves the task presets admins keep for quick creation.
type TemplateHandler struct {
	templates *store.TemplateStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewTemplateHandler(templates *store.TemplateStore, hub *websocket.Hub, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templates: templates, hub: hub, logger: logger}
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.List()
	if err != nil {
		h.logger.Error("list templates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	if templates == nil {
		templates = []model.TaskTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title" validate:"required"`
		Points int    `json:"points" validate:"gte=0"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	tmpl, err := h.templates.Create(req.Title, req.Points)
	if err != nil {
		h.logger.Error("create template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create template")
		return
	}
	h.hub.Broadcast(websocket.NewMessage(websocket.EntityTemplate, "created", tmpl.ID, nil))
	writeJSON(w, http.StatusCreated, tmpl)
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.templates.GetByID(id)
	if err != nil {
		h.logger.Error("get template", "template_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err := h.templates.Delete(id); err != nil {
		h.logger.Error("delete template", "template_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete template")
		return
	}
	h.hub.Broadcast(websocket.NewMessage(websocket.EntityTemplate, "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
