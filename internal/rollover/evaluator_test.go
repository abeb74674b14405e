package rollover

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/database"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/store"
)

type fixture struct {
	db      *sql.DB
	tasks   *store.TaskStore
	members *store.MemberStore
	points  *store.PointStore
	eval    *Evaluator
	now     time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clk := clock.WithNow(func() time.Time { return now }, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		db:      db,
		tasks:   store.NewTaskStore(db),
		members: store.NewMemberStore(db),
		points:  store.NewPointStore(db),
		eval:    NewEvaluator(db, clk, nil, logger),
		now:     now,
	}
}

func (f *fixture) member(t *testing.T, points, streak, shield int) *model.FamilyMember {
	t.Helper()
	m, err := f.members.Create("Ana", "", nil)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if err := f.members.Gift(m.ID, points, shield); err != nil {
		t.Fatalf("gift: %v", err)
	}
	if _, err := f.members.ApplyStreak(m.ID, streak, streak, shield, "2026-01-01"); err != nil {
		t.Fatalf("seed streak: %v", err)
	}
	return m
}

func TestRunPenalizesOverdueOnce(t *testing.T) {
	f := setup(t)
	m := f.member(t, 100, 4, 0)
	past := f.now.Add(-time.Hour)
	task, _ := f.tasks.Create(model.Task{Title: "Trash", AssigneeID: &m.ID, Points: 10, DueDate: &past})

	res, err := f.eval.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Penalties != 1 || res.PointsDebited != 20 {
		t.Errorf("result = %+v, want one penalty of 20", res)
	}

	got, _ := f.members.GetByID(m.ID)
	if got.TotalPoints != 80 {
		t.Errorf("total_points = %d, want 80", got.TotalPoints)
	}
	tk, _ := f.tasks.GetByID(task.ID)
	if !tk.PenaltyApplied {
		t.Error("expected penalty_applied = true")
	}

	res, err = f.eval.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Changed() {
		t.Errorf("second run = %+v, want no changes", res)
	}
	got, _ = f.members.GetByID(m.ID)
	if got.TotalPoints != 80 {
		t.Errorf("total_points after second run = %d, want 80", got.TotalPoints)
	}

	events, _ := f.points.ListByMember(m.ID, 10)
	if len(events) != 1 || events[0].Reason != model.ReasonPenalty || events[0].Delta != -20 {
		t.Errorf("ledger = %+v, want one penalty row of -20", events)
	}
}

func TestRunDailyPenaltyResetAndStreak(t *testing.T) {
	f := setup(t)
	m := f.member(t, 50, 2, 0)
	missed, _ := f.tasks.Create(model.Task{Title: "Bed", AssigneeID: &m.ID, Points: 10, IsDaily: true, LastResetDate: "2026-03-01"})
	done, _ := f.tasks.Create(model.Task{Title: "Teeth", AssigneeID: &m.ID, Points: 10, IsDaily: true, LastResetDate: "2026-03-01"})
	f.tasks.MarkCompleted(done.ID, f.now.Add(-12*time.Hour))

	res, err := f.eval.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Penalties != 1 || res.Resets != 2 || res.StreakChanges != 1 {
		t.Errorf("result = %+v, want 1 penalty, 2 resets, 1 streak change", res)
	}

	for _, id := range []int64{missed.ID, done.ID} {
		tk, _ := f.tasks.GetByID(id)
		if tk.IsCompleted || tk.PenaltyApplied || tk.LastResetDate != "2026-03-02" {
			t.Errorf("task %d = %+v, want reset for 2026-03-02", id, tk)
		}
	}

	got, _ := f.members.GetByID(m.ID)
	if got.TotalPoints != 30 {
		t.Errorf("total_points = %d, want 30", got.TotalPoints)
	}
	if got.StreakCount != 0 || got.LastStreakUpdate != "2026-03-02" {
		t.Errorf("streak = %d on %q, want 0 on 2026-03-02", got.StreakCount, got.LastStreakUpdate)
	}

	res, _ = f.eval.Run(context.Background())
	if res.Changed() {
		t.Errorf("second run = %+v, want no changes", res)
	}
}

func TestRunShieldAbsorbsMissedDay(t *testing.T) {
	f := setup(t)
	m := f.member(t, 0, 5, 1)
	f.tasks.Create(model.Task{Title: "Bed", AssigneeID: &m.ID, IsDaily: true, LastResetDate: "2026-03-01"})

	if _, err := f.eval.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, _ := f.members.GetByID(m.ID)
	if got.StreakCount != 5 || got.ShieldHP != 0 {
		t.Errorf("streak = %d shield = %d, want 5 and 0", got.StreakCount, got.ShieldHP)
	}
}

func TestRunAllDoneExtendsStreak(t *testing.T) {
	f := setup(t)
	m := f.member(t, 0, 2, 0)
	task, _ := f.tasks.Create(model.Task{Title: "Bed", AssigneeID: &m.ID, IsDaily: true, LastResetDate: "2026-03-01"})
	f.tasks.MarkCompleted(task.ID, f.now.Add(-10*time.Hour))

	if _, err := f.eval.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, _ := f.members.GetByID(m.ID)
	if got.StreakCount != 3 || got.LongestStreak != 3 {
		t.Errorf("streak = %d longest = %d, want 3 and 3", got.StreakCount, got.LongestStreak)
	}
}

func TestRunConcurrentRunsApplyOnce(t *testing.T) {
	dir := t.TempDir()
	db, err := database.Open(dir + "/quest.db")
	if err != nil {
		t.Fatalf("open file db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clk := clock.WithNow(func() time.Time { return now }, time.UTC)
	eval := NewEvaluator(db, clk, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	members := store.NewMemberStore(db)
	tasks := store.NewTaskStore(db)

	m, _ := members.Create("Ana", "", nil)
	members.Gift(m.ID, 100, 0)
	past := now.Add(-time.Hour)
	tasks.Create(model.Task{Title: "Trash", AssigneeID: &m.ID, Points: 10, DueDate: &past})
	tasks.Create(model.Task{Title: "Bed", AssigneeID: &m.ID, Points: 10, IsDaily: true, LastResetDate: "2026-03-01"})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eval.Run(context.Background()); err != nil {
				t.Errorf("run: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := members.GetByID(m.ID)
	if got.TotalPoints != 60 {
		t.Errorf("total_points = %d, want 60 (two penalties of 20, each once)", got.TotalPoints)
	}
}
