// Package task runs the multi-row task operations: completion with its point
// award, reversal, stealing and evidence uploads.
package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/scoring"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/websocket"
)

// Actor is the member performing an operation.
type Actor struct {
	MemberID int64
	IsAdmin  bool
}

// PhotoUploader stores evidence photos and returns their public URLs.
type PhotoUploader interface {
	Upload(ctx context.Context, memberID, taskID int64, filename, contentType string, data []byte) (url, thumbURL string, err error)
}

// Completion reports the outcome of completing or reverting a task.
type Completion struct {
	Task  *model.Task `json:"task"`
	Award int         `json:"award"`
}

type Service struct {
	db      *sql.DB
	tasks   *store.TaskStore
	members *store.MemberStore
	points  *store.PointStore
	goals   *store.GoalStore
	photos  PhotoUploader
	clock   clock.Clock
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewService(db *sql.DB, photos PhotoUploader, clk clock.Clock, hub *websocket.Hub, logger *slog.Logger) *Service {
	return &Service{
		db:      db,
		tasks:   store.NewTaskStore(db),
		members: store.NewMemberStore(db),
		points:  store.NewPointStore(db),
		goals:   store.NewGoalStore(db),
		photos:  photos,
		clock:   clk,
		hub:     hub,
		logger:  logger,
	}
}

func (s *Service) broadcast(entity, action string, id int64, extra map[string]any) {
	s.hub.Broadcast(websocket.NewMessage(entity, action, id, extra))
}

func canManage(actor Actor, t *model.Task) bool {
	return actor.IsAdmin || (t.AssigneeID != nil && *t.AssigneeID == actor.MemberID)
}

// Complete marks a task done and credits its assignee with the award for
// the assignee's current streak, the stolen flag and any double-points buff.
// The active goal gains the same amount.
func (s *Service) Complete(ctx context.Context, actor Actor, taskID int64) (*Completion, error) {
	var out Completion
	now := s.clock.Now()

	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)
		members := s.members.WithTx(tx)

		t, err := tasks.GetByID(taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrNotFound
		}
		if !canManage(actor, t) {
			return ErrForbidden
		}
		if t.IsCompleted {
			return ErrAlreadyCompleted
		}
		if t.AssigneeID == nil {
			return ErrUnassigned
		}

		m, err := members.GetByID(*t.AssigneeID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrUnassigned
		}

		award := scoring.Award(t.Points, m.StreakCount, t.Stolen, m.DoublePointsActive(now))

		if err := tasks.MarkCompleted(t.ID, now); err != nil {
			if errors.Is(err, store.ErrNoRowsAffected) {
				return ErrAlreadyCompleted
			}
			return err
		}
		if err := s.credit(tx, m.ID, t.ID, award, model.ReasonTaskCompleted); err != nil {
			return err
		}

		out.Award = award
		out.Task, err = tasks.GetByID(t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task completed", "task_id", taskID, "member_id", *out.Task.AssigneeID, "award", out.Award)
	s.broadcast(websocket.EntityTask, "completed", taskID, map[string]any{"award": out.Award})
	s.broadcast(websocket.EntityMember, "updated", *out.Task.AssigneeID, nil)
	s.broadcast(websocket.EntityGoal, "updated", 0, nil)
	return &out, nil
}

// Uncomplete reverts a completion. The amount removed is recomputed from the
// assignee's state now, not the amount granted at completion time.
func (s *Service) Uncomplete(ctx context.Context, actor Actor, taskID int64) (*Completion, error) {
	var out Completion
	now := s.clock.Now()

	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)
		members := s.members.WithTx(tx)

		t, err := tasks.GetByID(taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrNotFound
		}
		if !canManage(actor, t) {
			return ErrForbidden
		}
		if !t.IsCompleted {
			return ErrNotCompleted
		}

		if err := tasks.MarkIncomplete(t.ID); err != nil {
			if errors.Is(err, store.ErrNoRowsAffected) {
				return ErrNotCompleted
			}
			return err
		}

		if t.AssigneeID != nil {
			m, err := members.GetByID(*t.AssigneeID)
			if err != nil {
				return err
			}
			if m != nil {
				award := scoring.Award(t.Points, m.StreakCount, t.Stolen, m.DoublePointsActive(now))
				if err := s.credit(tx, m.ID, t.ID, -award, model.ReasonTaskReverted); err != nil {
					return err
				}
				out.Award = -award
			}
		}

		out.Task, err = tasks.GetByID(t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(websocket.EntityTask, "uncompleted", taskID, map[string]any{"award": out.Award})
	if out.Task.AssigneeID != nil {
		s.broadcast(websocket.EntityMember, "updated", *out.Task.AssigneeID, nil)
	}
	s.broadcast(websocket.EntityGoal, "updated", 0, nil)
	return &out, nil
}

// Toggle completes an open task or reverts a completed one.
func (s *Service) Toggle(ctx context.Context, actor Actor, taskID int64) (*Completion, error) {
	t, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if t.IsCompleted {
		return s.Uncomplete(ctx, actor, taskID)
	}
	return s.Complete(ctx, actor, taskID)
}

// credit moves points for a task inside tx, writes the ledger row and keeps
// the active goal in step.
func (s *Service) credit(tx *sql.Tx, memberID, taskID int64, delta int, reason model.PointReason) error {
	if err := s.members.WithTx(tx).AddPoints(memberID, delta); err != nil {
		return fmt.Errorf("credit member %d: %w", memberID, err)
	}
	if err := s.points.WithTx(tx).Record(memberID, delta, reason, &taskID, nil); err != nil {
		return err
	}
	return s.goals.WithTx(tx).AddProgress(delta)
}

// Steal moves an unfinished task onto the actor and marks it stolen, which
// doubles its award. The reassignment is guarded on the assignee read
// beforehand, so of two thieves acting on the same snapshot only the first
// succeeds.
func (s *Service) Steal(ctx context.Context, actor Actor, taskID int64) (*model.Task, error) {
	if actor.MemberID == 0 {
		return nil, ErrNoMember
	}

	t, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if t.IsCompleted {
		return nil, ErrAlreadyCompleted
	}
	if t.AssigneeID != nil && *t.AssigneeID == actor.MemberID {
		return nil, ErrStealOwnTask
	}

	if err := s.tasks.Steal(t.ID, actor.MemberID, t.AssigneeID); err != nil {
		if errors.Is(err, store.ErrNoRowsAffected) {
			return nil, ErrStealConflict
		}
		return nil, err
	}
	out, err := s.tasks.GetByID(t.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("task stolen", "task_id", taskID, "member_id", actor.MemberID)
	s.broadcast(websocket.EntityTask, "stolen", taskID, map[string]any{"member_id": actor.MemberID})
	return out, nil
}

// CompleteWithEvidence uploads a photo, stores its URLs on the task, then
// completes it.
func (s *Service) CompleteWithEvidence(ctx context.Context, actor Actor, taskID int64, filename, contentType string, data []byte) (*Completion, error) {
	if s.photos == nil {
		return nil, ErrEvidenceDisabled
	}

	t, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if !canManage(actor, t) {
		return nil, ErrForbidden
	}
	if t.IsCompleted {
		return nil, ErrAlreadyCompleted
	}

	owner := actor.MemberID
	if t.AssigneeID != nil {
		owner = *t.AssigneeID
	}
	url, thumbURL, err := s.photos.Upload(ctx, owner, taskID, filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("upload evidence: %w", err)
	}
	if err := s.tasks.SetEvidence(taskID, url, thumbURL); err != nil {
		return nil, err
	}
	return s.Complete(ctx, actor, taskID)
}
