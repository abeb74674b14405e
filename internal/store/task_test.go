package store

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/chorequest/internal/model"
)

func setupTaskTest(t *testing.T) (*TaskStore, *MemberStore) {
	t.Helper()
	db := setupTestDB(t)
	return NewTaskStore(db), NewMemberStore(db)
}

func TestTaskCreateDefaults(t *testing.T) {
	ts, ms := setupTaskTest(t)
	m, _ := ms.Create("Ana", "", nil)
	due := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	task, err := ts.Create(model.Task{Title: "Dishes", AssigneeID: &m.ID, DueDate: &due})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Points != model.DefaultTaskPoints {
		t.Errorf("points = %d, want %d", task.Points, model.DefaultTaskPoints)
	}
	if task.MissionType != model.MissionMandatory {
		t.Errorf("mission_type = %q, want mandatory", task.MissionType)
	}
	if task.EndDate == nil || !task.EndDate.Equal(due) {
		t.Errorf("end_date = %v, want %v", task.EndDate, due)
	}
	if task.IsCompleted || task.PenaltyApplied || task.Stolen {
		t.Error("expected fresh task flags to be false")
	}
}

func TestTaskListWithAssignee(t *testing.T) {
	ts, ms := setupTaskTest(t)
	m, _ := ms.Create("Ana", "/ana.png", nil)
	ts.Create(model.Task{Title: "Dishes", AssigneeID: &m.ID})
	ts.Create(model.Task{Title: "Orphan"})

	tasks, err := ts.ListWithAssignee()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len = %d, want 2", len(tasks))
	}
	if tasks[0].AssigneeName != "Ana" || tasks[0].AssigneeAvatar != "/ana.png" {
		t.Errorf("assignee = %q/%q, want Ana", tasks[0].AssigneeName, tasks[0].AssigneeAvatar)
	}
	if tasks[1].AssigneeName != "" {
		t.Errorf("orphan assignee = %q, want empty", tasks[1].AssigneeName)
	}
}

func TestTaskCompletionGuards(t *testing.T) {
	ts, ms := setupTaskTest(t)
	m, _ := ms.Create("Ana", "", nil)
	task, _ := ts.Create(model.Task{Title: "Dishes", AssigneeID: &m.ID})
	now := time.Now()

	if err := ts.MarkCompleted(task.ID, now); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if err := ts.MarkCompleted(task.ID, now); !errors.Is(err, ErrNoRowsAffected) {
		t.Errorf("second complete: err = %v, want ErrNoRowsAffected", err)
	}

	ts.SetEvidence(task.ID, "https://cdn/x.jpg", "https://cdn/thumbs/x.jpg")
	if err := ts.MarkIncomplete(task.ID); err != nil {
		t.Fatalf("mark incomplete: %v", err)
	}
	got, _ := ts.GetByID(task.ID)
	if got.IsCompleted || got.CompletedAt != nil || got.EvidenceURL != "" {
		t.Errorf("task = %+v, want cleared completion", got)
	}
	if err := ts.MarkIncomplete(task.ID); !errors.Is(err, ErrNoRowsAffected) {
		t.Errorf("second uncomplete: err = %v, want ErrNoRowsAffected", err)
	}
}

func TestTaskMarkPenalizedOnce(t *testing.T) {
	ts, ms := setupTaskTest(t)
	m, _ := ms.Create("Ana", "", nil)
	task, _ := ts.Create(model.Task{Title: "Dishes", AssigneeID: &m.ID})

	first, err := ts.MarkPenalized(task.ID)
	if err != nil || !first {
		t.Fatalf("first = %v, %v; want true, nil", first, err)
	}
	second, err := ts.MarkPenalized(task.ID)
	if err != nil || second {
		t.Fatalf("second = %v, %v; want false, nil", second, err)
	}
}

func TestTaskResetDailyOncePerDay(t *testing.T) {
	ts, ms := setupTaskTest(t)
	m, _ := ms.Create("Ana", "", nil)
	task, _ := ts.Create(model.Task{Title: "Bed", AssigneeID: &m.ID, IsDaily: true, LastResetDate: "2026-02-28"})
	ts.MarkCompleted(task.ID, time.Now())
	ts.MarkPenalized(task.ID)

	ok, err := ts.ResetDaily(task.ID, "2026-03-01")
	if err != nil || !ok {
		t.Fatalf("reset = %v, %v; want true, nil", ok, err)
	}
	got, _ := ts.GetByID(task.ID)
	if got.IsCompleted || got.PenaltyApplied || got.LastResetDate != "2026-03-01" {
		t.Errorf("task = %+v, want reset for 2026-03-01", got)
	}

	ok, _ = ts.ResetDaily(task.ID, "2026-03-01")
	if ok {
		t.Error("expected second reset on the same day to be a no-op")
	}
}

func TestTaskStealConflict(t *testing.T) {
	ts, ms := setupTaskTest(t)
	owner, _ := ms.Create("Ana", "", nil)
	thief1, _ := ms.Create("Beto", "", nil)
	thief2, _ := ms.Create("Caro", "", nil)
	task, _ := ts.Create(model.Task{Title: "Dishes", AssigneeID: &owner.ID})

	if err := ts.Steal(task.ID, thief1.ID, &owner.ID); err != nil {
		t.Fatalf("first steal: %v", err)
	}
	if err := ts.Steal(task.ID, thief2.ID, &owner.ID); !errors.Is(err, ErrNoRowsAffected) {
		t.Fatalf("second steal: err = %v, want ErrNoRowsAffected", err)
	}

	got, _ := ts.GetByID(task.ID)
	if *got.AssigneeID != thief1.ID || !got.Stolen {
		t.Errorf("assignee = %d stolen = %v, want %d true", *got.AssigneeID, got.Stolen, thief1.ID)
	}
}

func TestTaskListDueForReminder(t *testing.T) {
	ts, ms := setupTaskTest(t)
	m, _ := ms.Create("Ana", "", nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(3 * time.Minute)
	later := now.Add(time.Hour)

	ts.Create(model.Task{Title: "Soon", AssigneeID: &m.ID, DueDate: &soon, ReminderActive: true})
	ts.Create(model.Task{Title: "Later", AssigneeID: &m.ID, DueDate: &later, ReminderActive: true})
	ts.Create(model.Task{Title: "Quiet", AssigneeID: &m.ID, DueDate: &soon})

	tasks, err := ts.ListDueForReminder(now, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Soon" {
		t.Errorf("tasks = %+v, want only Soon", tasks)
	}
}

func TestTaskToggleReminder(t *testing.T) {
	ts, ms := setupTaskTest(t)
	m, _ := ms.Create("Ana", "", nil)
	task, _ := ts.Create(model.Task{Title: "Dishes", AssigneeID: &m.ID})

	got, err := ts.ToggleReminder(task.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !got.ReminderActive {
		t.Error("expected reminder on")
	}
	got, _ = ts.ToggleReminder(task.ID)
	if got.ReminderActive {
		t.Error("expected reminder off")
	}
}

func TestTaskPendingDailyAssignees(t *testing.T) {
	ts, ms := setupTaskTest(t)
	a, _ := ms.Create("Ana", "", nil)
	b, _ := ms.Create("Beto", "", nil)
	ts.Create(model.Task{Title: "Bed", AssigneeID: &a.ID, IsDaily: true})
	done, _ := ts.Create(model.Task{Title: "Teeth", AssigneeID: &b.ID, IsDaily: true})
	ts.MarkCompleted(done.ID, time.Now())

	ids, err := ts.ListPendingDailyAssignees()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0] != a.ID {
		t.Errorf("ids = %v, want [%d]", ids, a.ID)
	}
}
