// Package goal manages the shared family goals that completed tasks feed.
package goal

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/websocket"
)

var (
	ErrNotFound     = errors.New("goal not found")
	ErrTitleMissing = errors.New("title is required")
	ErrRedeemed     = errors.New("goal already redeemed")
	ErrNotReached   = errors.New("goal has not reached its target")
)

type Service struct {
	db     *sql.DB
	goals  *store.GoalStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewService(db *sql.DB, hub *websocket.Hub, logger *slog.Logger) *Service {
	return &Service{db: db, goals: store.NewGoalStore(db), hub: hub, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]model.FamilyGoal, error) {
	goals, err := s.goals.List()
	if err != nil {
		return nil, err
	}
	if goals == nil {
		goals = []model.FamilyGoal{}
	}
	return goals, nil
}

// Create adds a goal. A zero target or empty emoji take the defaults, and
// the first goal ever created starts active.
func (s *Service) Create(ctx context.Context, title string, target int, emoji string) (*model.FamilyGoal, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleMissing
	}
	g, err := s.goals.Create(title, target, emoji)
	if err != nil {
		return nil, err
	}
	s.hub.Broadcast(websocket.NewMessage(websocket.EntityGoal, "created", g.ID, nil))
	return g, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	g, err := s.goals.GetByID(id)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrNotFound
	}
	if err := s.goals.Delete(id); err != nil {
		return err
	}
	s.hub.Broadcast(websocket.NewMessage(websocket.EntityGoal, "deleted", id, nil))
	return nil
}

// Activate makes id the only active goal. The clear and the set commit
// together; the partial unique index rejects a second active row.
func (s *Service) Activate(ctx context.Context, id int64) (*model.FamilyGoal, error) {
	g, err := s.goals.GetByID(id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotFound
	}
	if g.IsRedeemed {
		return nil, ErrRedeemed
	}

	err = store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.goals.WithTx(tx).Activate(id); err != nil {
			if errors.Is(err, store.ErrNoRowsAffected) {
				return ErrRedeemed
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("goal activated", "goal_id", id)
	s.hub.Broadcast(websocket.NewMessage(websocket.EntityGoal, "activated", id, nil))
	return s.goals.GetByID(id)
}

// Redeem closes a goal whose progress reached its target.
func (s *Service) Redeem(ctx context.Context, id int64) (*model.FamilyGoal, error) {
	g, err := s.goals.GetByID(id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotFound
	}
	if g.IsRedeemed {
		return nil, ErrRedeemed
	}
	if !g.Reached() {
		return nil, ErrNotReached
	}

	if err := s.goals.Redeem(id); err != nil {
		if errors.Is(err, store.ErrNoRowsAffected) {
			return nil, ErrNotReached
		}
		return nil, err
	}

	s.logger.Info("goal redeemed", "goal_id", id, "points", g.CurrentPoints)
	s.hub.Broadcast(websocket.NewMessage(websocket.EntityGoal, "redeemed", id, nil))
	return s.goals.GetByID(id)
}
