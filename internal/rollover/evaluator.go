package rollover

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/websocket"
)

// Result counts what one run changed.
type Result struct {
	Penalties     int `json:"penalties"`
	PointsDebited int `json:"points_debited"`
	Resets        int `json:"resets"`
	StreakChanges int `json:"streak_changes"`
}

func (r Result) Changed() bool {
	return r.Penalties+r.Resets+r.StreakChanges > 0
}

// Evaluator runs the penalty and streak pass in a single transaction. Every
// write is guarded so overlapping runs cannot apply the same step twice.
type Evaluator struct {
	db      *sql.DB
	tasks   *store.TaskStore
	members *store.MemberStore
	points  *store.PointStore
	clock   clock.Clock
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewEvaluator(db *sql.DB, clk clock.Clock, hub *websocket.Hub, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		db:      db,
		tasks:   store.NewTaskStore(db),
		members: store.NewMemberStore(db),
		points:  store.NewPointStore(db),
		clock:   clk,
		hub:     hub,
		logger:  logger,
	}
}

func (e *Evaluator) Run(ctx context.Context) (Result, error) {
	now := e.clock.Now()
	today := e.clock.Today()
	var res Result

	err := store.RunInTx(ctx, e.db, func(tx *sql.Tx) error {
		tasks := e.tasks.WithTx(tx)
		members := e.members.WithTx(tx)
		points := e.points.WithTx(tx)

		allTasks, err := tasks.List()
		if err != nil {
			return err
		}
		allMembers, err := members.List()
		if err != nil {
			return err
		}

		plan := BuildPlan(allTasks, allMembers, now, today)
		if plan.Empty() {
			return nil
		}

		for _, p := range plan.Penalties {
			applied, err := tasks.MarkPenalized(p.TaskID)
			if err != nil {
				return err
			}
			if !applied {
				continue
			}
			res.Penalties++
			if p.AssigneeID == nil {
				continue
			}
			if err := members.AddPoints(*p.AssigneeID, -p.Amount); err != nil {
				if errors.Is(err, store.ErrNoRowsAffected) {
					continue
				}
				return fmt.Errorf("debit member %d: %w", *p.AssigneeID, err)
			}
			taskID := p.TaskID
			if err := points.Record(*p.AssigneeID, -p.Amount, model.ReasonPenalty, &taskID, nil); err != nil {
				return err
			}
			res.PointsDebited += p.Amount
		}

		for _, id := range plan.Resets {
			reset, err := tasks.ResetDaily(id, today)
			if err != nil {
				return err
			}
			if reset {
				res.Resets++
			}
		}

		for _, s := range plan.Streaks {
			changed, err := members.ApplyStreak(s.MemberID, s.Streak, s.Longest, s.Shield, today)
			if err != nil {
				return err
			}
			if changed {
				res.StreakChanges++
				e.logger.Debug("streak stepped", "member_id", s.MemberID, "outcome", s.Outcome, "streak", s.Streak)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rollover: %w", err)
	}

	if res.Changed() {
		e.logger.Info("rollover applied",
			"penalties", res.Penalties,
			"points_debited", res.PointsDebited,
			"resets", res.Resets,
			"streak_changes", res.StreakChanges,
			"day", today,
		)
		e.hub.Broadcast(websocket.NewMessage(websocket.EntityTask, "refreshed", 0, nil))
		e.hub.Broadcast(websocket.NewMessage(websocket.EntityMember, "refreshed", 0, nil))
	}
	return res, nil
}
