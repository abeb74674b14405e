package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/chorequest/internal/auth"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/rollover"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/task"
)

type taskFixture struct {
	h       *TaskHandler
	members *store.MemberStore
	tasks   *store.TaskStore
}

func newTaskFixture(t *testing.T) taskFixture {
	db := openTestDB(t)
	clk := testClock()
	logger := discardLogger()
	members := store.NewMemberStore(db)
	return taskFixture{
		h: NewTaskHandler(
			task.NewService(db, nil, clk, nil, logger),
			rollover.NewEvaluator(db, clk, nil, logger),
			members, clk, logger,
		),
		members: members,
		tasks:   store.NewTaskStore(db),
	}
}

func TestCreateTask(t *testing.T) {
	f := newTaskFixture(t)
	m, _ := f.members.Create("Ana", "", nil)
	ac := &auth.AuthContext{MemberID: m.ID, Role: "member"}

	rec := httptest.NewRecorder()
	f.h.Create(rec, jsonRequest("POST", "/api/tasks", map[string]any{
		"title": "Sweep", "assignee_id": m.ID, "is_daily": true,
	}, ac))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[model.Task](t, rec)
	if got.Points != model.DefaultTaskPoints || got.MissionType != model.MissionMandatory {
		t.Errorf("task = %+v, want default points and mission", got)
	}
	if got.LastResetDate != "2026-03-02" {
		t.Errorf("last_reset_date = %q, want today", got.LastResetDate)
	}
	if got.CreatedBy == nil || *got.CreatedBy != m.ID {
		t.Errorf("created_by = %v, want %d", got.CreatedBy, m.ID)
	}

	cases := []struct {
		name string
		body map[string]any
	}{
		{"no assignee", map[string]any{"title": "Sweep"}},
		{"unknown assignee", map[string]any{"title": "Sweep", "assignee_id": 999}},
		{"blank title", map[string]any{"title": " ", "assignee_id": m.ID}},
		{"bad mission", map[string]any{"title": "Sweep", "assignee_id": m.ID, "mission_type": "epic"}},
		{"end before due", map[string]any{
			"title": "Sweep", "assignee_id": m.ID,
			"due_date": "2026-03-05T10:00:00Z", "end_date": "2026-03-04T10:00:00Z",
		}},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		f.h.Create(rec, jsonRequest("POST", "/api/tasks", c.body, ac))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", c.name, rec.Code)
		}
	}
}

func TestListRunsEvaluator(t *testing.T) {
	f := newTaskFixture(t)
	m, _ := f.members.Create("Ana", "", nil)
	f.members.SetPoints(m.ID, 100)
	due := testNow.Add(-24 * time.Hour)
	f.tasks.Create(model.Task{Title: "Trash", AssigneeID: &m.ID, Points: 10, DueDate: &due})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		f.h.List(rec, jsonRequest("GET", "/api/tasks", nil, &auth.AuthContext{MemberID: m.ID}))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		tasks := decodeBody[[]model.TaskWithAssignee](t, rec)
		if len(tasks) != 1 || !tasks[0].PenaltyApplied || tasks[0].AssigneeName != "Ana" {
			t.Fatalf("tasks = %+v, want one penalized task for Ana", tasks)
		}
	}

	got, _ := f.members.GetByID(m.ID)
	if got.TotalPoints != 80 {
		t.Errorf("points = %d, want 80 after a single penalty", got.TotalPoints)
	}
}

func TestToggleAndSteal(t *testing.T) {
	f := newTaskFixture(t)
	ana, _ := f.members.Create("Ana", "", nil)
	bea, _ := f.members.Create("Bea", "", nil)
	tk, _ := f.tasks.Create(model.Task{Title: "Dishes", AssigneeID: &ana.ID, Points: 10})

	rec := httptest.NewRecorder()
	f.h.Steal(rec, withID(jsonRequest("POST", "/", nil, &auth.AuthContext{MemberID: bea.ID}), tk.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("steal status = %d: %s", rec.Code, rec.Body.String())
	}
	stolen := decodeBody[model.Task](t, rec)
	if !stolen.Stolen || *stolen.AssigneeID != bea.ID {
		t.Errorf("task = %+v, want stolen by Bea", stolen)
	}

	rec = httptest.NewRecorder()
	f.h.Toggle(rec, withID(jsonRequest("POST", "/", nil, &auth.AuthContext{MemberID: ana.ID}), tk.ID))
	if rec.Code != http.StatusForbidden {
		t.Errorf("toggle by former assignee status = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	f.h.Toggle(rec, withID(jsonRequest("POST", "/", nil, &auth.AuthContext{MemberID: bea.ID}), tk.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d: %s", rec.Code, rec.Body.String())
	}
	if c := decodeBody[task.Completion](t, rec); c.Award != 20 || !c.Task.IsCompleted {
		t.Errorf("completion = %+v, want stolen award 20", c)
	}

	rec = httptest.NewRecorder()
	f.h.Steal(rec, withID(jsonRequest("POST", "/", nil, &auth.AuthContext{MemberID: ana.ID}), tk.ID))
	if rec.Code != http.StatusConflict {
		t.Errorf("steal completed status = %d, want 409", rec.Code)
	}

	rec = httptest.NewRecorder()
	f.h.Steal(rec, withID(jsonRequest("POST", "/", nil, &auth.AuthContext{MemberID: ana.ID}), 999))
	if rec.Code != http.StatusNotFound {
		t.Errorf("steal missing status = %d, want 404", rec.Code)
	}
}

func TestEvidenceWithoutStorage(t *testing.T) {
	f := newTaskFixture(t)
	m, _ := f.members.Create("Ana", "", nil)
	tk, _ := f.tasks.Create(model.Task{Title: "Dishes", AssigneeID: &m.ID})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("photo", "proof.jpg")
	part.Write([]byte("not really a jpeg"))
	mw.Close()

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{MemberID: m.ID}))

	rec := httptest.NewRecorder()
	f.h.Evidence(rec, withID(req, tk.ID))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	f.h.Evidence(rec, withID(jsonRequest("POST", "/", nil, &auth.AuthContext{MemberID: m.ID}), tk.ID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing photo status = %d, want 400", rec.Code)
	}
}

func TestCalendar(t *testing.T) {
	f := newTaskFixture(t)
	m, _ := f.members.Create("Ana", "", nil)
	f.tasks.Create(model.Task{Title: "Beds", AssigneeID: &m.ID, IsDaily: true})

	rec := httptest.NewRecorder()
	f.h.Calendar(rec, jsonRequest("GET", "/api/calendar?month=2026-03", nil, &auth.AuthContext{MemberID: m.ID}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[struct {
		Month string              `json:"month"`
		Days  []model.CalendarDay `json:"days"`
	}](t, rec)
	if body.Month != "2026-03" || len(body.Days) != 42 {
		t.Fatalf("month = %q days = %d, want 2026-03 with 42 days", body.Month, len(body.Days))
	}
	if body.Days[0].Date != "2026-02-23" || len(body.Days[0].Tasks) != 1 {
		t.Errorf("first day = %+v, want 2026-02-23 with the daily task", body.Days[0])
	}

	rec = httptest.NewRecorder()
	f.h.Calendar(rec, jsonRequest("GET", "/api/calendar?month=March", nil, nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad month status = %d, want 400", rec.Code)
	}
}
