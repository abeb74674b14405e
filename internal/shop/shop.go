// Package shop sells items for points and applies their effects.
package shop

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/websocket"
)

// VoucherNotifier tells the admins that a member redeemed a voucher.
type VoucherNotifier interface {
	NotifyVoucherUsed(ctx context.Context, member *model.FamilyMember, item *model.ShopItem)
}

type Service struct {
	db       *sql.DB
	items    *store.ShopStore
	members  *store.MemberStore
	tasks    *store.TaskStore
	points   *store.PointStore
	notifier VoucherNotifier
	clock    clock.Clock
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewService(db *sql.DB, notifier VoucherNotifier, clk clock.Clock, hub *websocket.Hub, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		items:    store.NewShopStore(db),
		members:  store.NewMemberStore(db),
		tasks:    store.NewTaskStore(db),
		points:   store.NewPointStore(db),
		notifier: notifier,
		clock:    clk,
		hub:      hub,
		logger:   logger,
	}
}

func (s *Service) broadcast(entity, action string, id int64) {
	s.hub.Broadcast(websocket.NewMessage(entity, action, id, nil))
}

// Purchase debits the item's cost and adds it to the member's inventory.
// A short balance leaves everything untouched.
func (s *Service) Purchase(ctx context.Context, memberID, itemID int64) (*model.InventoryEntry, error) {
	if memberID == 0 {
		return nil, ErrNoMember
	}

	var entry *model.InventoryEntry
	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		items := s.items.WithTx(tx)

		item, err := items.GetItem(itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrNotFound
		}

		oneTime := item.Category.OneTime()
		if oneTime {
			owned, err := items.GetEntryByItem(memberID, itemID)
			if err != nil {
				return err
			}
			if owned != nil {
				return ErrAlreadyOwned
			}
		}

		if err := s.members.WithTx(tx).SpendPoints(memberID, item.Cost); err != nil {
			if errors.Is(err, store.ErrNoRowsAffected) {
				return ErrInsufficientPoints
			}
			return err
		}

		if oneTime {
			err = items.InsertOnce(memberID, itemID)
			if store.IsUniqueViolation(err) {
				return ErrAlreadyOwned
			}
		} else {
			err = items.AddToInventory(memberID, itemID)
		}
		if err != nil {
			return err
		}

		if err := s.points.WithTx(tx).Record(memberID, -item.Cost, model.ReasonPurchase, nil, &item.ID); err != nil {
			return err
		}

		entry, err = items.GetEntryByItem(memberID, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item purchased", "member_id", memberID, "item_id", itemID, "cost", entry.Item.Cost)
	s.broadcast(websocket.EntityInventory, "purchased", entry.ID)
	s.broadcast(websocket.EntityMember, "updated", memberID)
	return entry, nil
}

// ownedEntry loads an inventory entry and checks it belongs to memberID.
func ownedEntry(items *store.ShopStore, memberID, entryID int64) (*model.InventoryEntry, error) {
	e, err := items.GetEntry(entryID)
	if err != nil {
		return nil, err
	}
	if e == nil || e.MemberID != memberID {
		return nil, ErrNotFound
	}
	return e, nil
}

// Equip toggles a cosmetic entry. Backgrounds and skins are exclusive: the
// newly equipped one replaces any other and is mirrored onto the profile.
func (s *Service) Equip(ctx context.Context, memberID, entryID int64) (*model.InventoryEntry, error) {
	var out *model.InventoryEntry
	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		items := s.items.WithTx(tx)
		members := s.members.WithTx(tx)

		e, err := ownedEntry(items, memberID, entryID)
		if err != nil {
			return err
		}
		if e.Item.Effect != model.EffectCosmetic {
			return ErrNotEquippable
		}

		category := e.Item.Category
		if e.Equipped {
			if err := items.SetEquipped(e.ID, false); err != nil {
				return err
			}
			if category.Exclusive() {
				if err := members.SetSelected(memberID, category, ""); err != nil {
					return err
				}
			}
		} else {
			if category.Exclusive() {
				if err := items.UnequipCategory(memberID, category); err != nil {
					return err
				}
			}
			if err := items.SetEquipped(e.ID, true); err != nil {
				return err
			}
			if category.Exclusive() {
				if err := members.SetSelected(memberID, category, e.Item.EffectValue); err != nil {
					return err
				}
			}
		}

		out, err = items.GetEntry(e.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(websocket.EntityInventory, "updated", entryID)
	s.broadcast(websocket.EntityMember, "updated", memberID)
	return out, nil
}

// Inventory lists what a member owns.
func (s *Service) Inventory(ctx context.Context, memberID int64) ([]model.InventoryEntry, error) {
	entries, err := s.items.ListInventory(memberID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.InventoryEntry{}
	}
	return entries, nil
}
