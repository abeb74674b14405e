package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/chorequest/internal/goal"
	"github.com/dukerupert/chorequest/internal/model"
)

func TestGoalHandlerLifecycle(t *testing.T) {
	h := NewGoalHandler(goal.NewService(openTestDB(t), nil, discardLogger()), discardLogger())

	rec := httptest.NewRecorder()
	h.List(rec, jsonRequest("GET", "/", nil, adminCtx))
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("empty list body = %q, want []", got)
	}

	rec = httptest.NewRecorder()
	h.Create(rec, jsonRequest("POST", "/", map[string]any{"title": "Pizza night", "target_points": 200}, adminCtx))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	g := decodeBody[model.FamilyGoal](t, rec)

	rec = httptest.NewRecorder()
	h.Redeem(rec, withID(jsonRequest("POST", "/", nil, adminCtx), g.ID))
	if rec.Code != http.StatusConflict {
		t.Errorf("redeem status = %d, want 409", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Create(rec, jsonRequest("POST", "/", map[string]any{"title": ""}, adminCtx))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank title status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Delete(rec, withID(jsonRequest("DELETE", "/", nil, adminCtx), 999))
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", rec.Code)
	}
}
