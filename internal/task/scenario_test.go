package task_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/database"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/rollover"
	"github.com/dukerupert/chorequest/internal/shop"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/task"
)

// A member with 100 points and a 4-day streak misses one task, finishes
// another and spends half their points in the shop.
func TestPenaltyCompletionPurchaseScenario(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clk := clock.WithNow(func() time.Time { return now }, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	members := store.NewMemberStore(db)
	tasks := store.NewTaskStore(db)
	m, err := members.Create("Ana", "", nil)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	members.SetPoints(m.ID, 100)
	members.ApplyStreak(m.ID, 4, 4, 0, "2026-03-01")

	due := now.Add(-2 * time.Hour)
	if _, err := tasks.Create(model.Task{Title: "Barrer", AssigneeID: &m.ID, Points: 10, DueDate: &due}); err != nil {
		t.Fatalf("create overdue task: %v", err)
	}
	open, err := tasks.Create(model.Task{Title: "Lavar", AssigneeID: &m.ID, Points: 10})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if _, err := rollover.NewEvaluator(db, clk, nil, logger).Run(ctx); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := points(t, members, m.ID); got != 80 {
		t.Fatalf("after penalty = %d, want 80", got)
	}

	svc := task.NewService(db, nil, clk, nil, logger)
	done, err := svc.Complete(ctx, task.Actor{MemberID: m.ID}, open.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Award != 20 {
		t.Errorf("award = %d, want 20 with streak 4", done.Award)
	}
	if got := points(t, members, m.ID); got != 100 {
		t.Fatalf("after completion = %d, want 100", got)
	}

	shopSvc := shop.NewService(db, nil, clk, nil, logger)
	item, err := shopSvc.CreateItem(ctx, model.ShopItem{Name: "Escudo", Cost: 50, Category: model.CategoryTravesura, Effect: model.EffectShield})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	entry, err := shopSvc.Purchase(ctx, m.ID, item.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if entry.Quantity != 1 {
		t.Errorf("quantity = %d, want 1", entry.Quantity)
	}
	if got := points(t, members, m.ID); got != 50 {
		t.Errorf("after purchase = %d, want 50", got)
	}
}

func points(t *testing.T, members *store.MemberStore, id int64) int {
	t.Helper()
	m, err := members.GetByID(id)
	if err != nil || m == nil {
		t.Fatalf("get member: %v", err)
	}
	return m.TotalPoints
}

// Turning a task daily must not cost its assignee anything on the same day.
func TestTaskMadeDailyIsNotPenalizedSameDay(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clk := clock.WithNow(func() time.Time { return now }, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	members := store.NewMemberStore(db)
	m, err := members.Create("Ana", "", nil)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	members.SetPoints(m.ID, 100)
	members.ApplyStreak(m.ID, 3, 3, 0, "2026-03-01")

	tk, err := store.NewTaskStore(db).Create(model.Task{Title: "Barrer", AssigneeID: &m.ID, Points: 10})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	edit := *tk
	edit.IsDaily = true
	if _, err := task.NewService(db, nil, clk, nil, logger).Update(ctx, task.Actor{MemberID: m.ID}, edit); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := rollover.NewEvaluator(db, clk, nil, logger).Run(ctx); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	got, err := members.GetByID(m.ID)
	if err != nil || got == nil {
		t.Fatalf("get member: %v", err)
	}
	if got.TotalPoints != 100 {
		t.Errorf("points = %d, want 100", got.TotalPoints)
	}
	if got.StreakCount < 3 {
		t.Errorf("streak = %d, want it kept at 3 or more", got.StreakCount)
	}
}
