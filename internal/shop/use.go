package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/websocket"
)

// Use activates one unit of a consumable entry. An effect that is refused
// leaves the entry untouched. taskID is only read for jokers.
func (s *Service) Use(ctx context.Context, memberID, entryID int64, taskID *int64) (*model.FamilyMember, error) {
	now := s.clock.Now()

	var (
		member *model.FamilyMember
		item   model.ShopItem
	)
	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		items := s.items.WithTx(tx)
		members := s.members.WithTx(tx)

		e, err := ownedEntry(items, memberID, entryID)
		if err != nil {
			return err
		}
		item = e.Item
		if !item.Effect.Consumable() {
			return ErrNotConsumable
		}

		if err := s.apply(tx, memberID, item, taskID, now); err != nil {
			return err
		}
		if err := items.ConsumeOne(e.ID); err != nil {
			return fmt.Errorf("consume %s: %w", item.Name, err)
		}

		var ledgerTask *int64
		if item.Effect == model.EffectJoker {
			ledgerTask = taskID
		}
		if err := s.points.WithTx(tx).Record(memberID, 0, model.ReasonItemUsed, ledgerTask, &item.ID); err != nil {
			return err
		}

		member, err = members.GetByID(memberID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item used", "member_id", memberID, "item_id", item.ID, "effect", item.Effect)
	s.broadcast(websocket.EntityInventory, "used", entryID)
	s.broadcast(websocket.EntityMember, "updated", memberID)
	if item.Effect == model.EffectJoker && taskID != nil {
		s.broadcast(websocket.EntityTask, "completed", *taskID)
	}
	if item.Effect == model.EffectVoucher && s.notifier != nil {
		s.notifier.NotifyVoucherUsed(ctx, member, &item)
	}
	return member, nil
}

func (s *Service) apply(tx *sql.Tx, memberID int64, item model.ShopItem, taskID *int64, now time.Time) error {
	members := s.members.WithTx(tx)

	switch item.Effect {
	case model.EffectShield:
		return members.AddShield(memberID)

	case model.EffectDoublePoints:
		err := members.StartDoublePoints(memberID, now, now.Add(item.Duration()))
		if errors.Is(err, store.ErrNoRowsAffected) {
			return ErrBuffActive
		}
		return err

	case model.EffectInvisibility:
		return members.SetHiddenUntil(memberID, now.Add(item.Duration()))

	case model.EffectVisual:
		name := item.EffectValue
		if name == "" {
			name = item.Name
		}
		err := members.AddVFX(memberID, name)
		if errors.Is(err, store.ErrNoRowsAffected) {
			return ErrEffectActive
		}
		return err

	case model.EffectVoucher:
		return nil

	case model.EffectJoker:
		if taskID == nil {
			return ErrJokerNeedsTask
		}
		tasks := s.tasks.WithTx(tx)
		t, err := tasks.GetByID(*taskID)
		if err != nil {
			return err
		}
		if t == nil || t.IsCompleted || t.AssigneeID == nil || *t.AssigneeID != memberID {
			return ErrJokerNeedsTask
		}
		err = tasks.MarkCompleted(t.ID, now)
		if errors.Is(err, store.ErrNoRowsAffected) {
			return ErrJokerNeedsTask
		}
		return err
	}
	return fmt.Errorf("unknown effect %q", item.Effect)
}
