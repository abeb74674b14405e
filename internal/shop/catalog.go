package shop

import (
	"context"
	"fmt"

	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/websocket"
)

func normalizeItem(i *model.ShopItem) error {
	if i.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if i.Cost < 0 {
		return fmt.Errorf("%w: cost must not be negative", ErrInvalidItem)
	}
	if i.Category == "" {
		i.Category = model.CategoryOther
	}
	if i.Effect == "" {
		i.Effect = model.EffectCosmetic
	}
	if !i.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidItem, i.Category)
	}
	if !i.Effect.Valid() {
		return fmt.Errorf("%w: unknown effect %q", ErrInvalidItem, i.Effect)
	}
	if i.EffectHours < 0 {
		return fmt.Errorf("%w: effect_hours must not be negative", ErrInvalidItem)
	}
	return nil
}

// ListItems returns the catalog, cheapest first.
func (s *Service) ListItems(ctx context.Context) ([]model.ShopItem, error) {
	items, err := s.items.ListItems()
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.ShopItem{}
	}
	return items, nil
}

func (s *Service) CreateItem(ctx context.Context, i model.ShopItem) (*model.ShopItem, error) {
	if err := normalizeItem(&i); err != nil {
		return nil, err
	}
	item, err := s.items.CreateItem(i)
	if err != nil {
		return nil, err
	}
	s.broadcast(websocket.EntityShopItem, "created", item.ID)
	return item, nil
}

func (s *Service) UpdateItem(ctx context.Context, i model.ShopItem) (*model.ShopItem, error) {
	if err := normalizeItem(&i); err != nil {
		return nil, err
	}
	existing, err := s.items.GetItem(i.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	item, err := s.items.UpdateItem(i)
	if err != nil {
		return nil, err
	}
	s.broadcast(websocket.EntityShopItem, "updated", item.ID)
	return item, nil
}

func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	existing, err := s.items.GetItem(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	if err := s.items.DeleteItem(id); err != nil {
		return err
	}
	s.broadcast(websocket.EntityShopItem, "deleted", id)
	return nil
}
