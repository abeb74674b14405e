package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/chorequest/internal/model"
)

func setupShopTest(t *testing.T) (*ShopStore, *model.FamilyMember) {
	t.Helper()
	db := setupTestDB(t)
	m, err := NewMemberStore(db).Create("Ana", "", nil)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return NewShopStore(db), m
}

func TestShopItemCRUD(t *testing.T) {
	ss, _ := setupShopTest(t)

	cheap, err := ss.CreateItem(model.ShopItem{Name: "Escudo", Cost: 50, Category: model.CategoryOther, Effect: model.EffectShield})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	ss.CreateItem(model.ShopItem{Name: "Corona", Cost: 300, Category: model.CategoryCrown, Effect: model.EffectCosmetic})
	ss.CreateItem(model.ShopItem{Name: "Gorro", Cost: 20, Category: model.CategoryHat, Effect: model.EffectCosmetic})

	items, err := ss.ListItems()
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 3 || items[0].Name != "Gorro" || items[2].Name != "Corona" {
		t.Errorf("items = %+v, want cost ascending", items)
	}

	cheap.Cost = 60
	updated, err := ss.UpdateItem(*cheap)
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if updated.Cost != 60 {
		t.Errorf("cost = %d, want 60", updated.Cost)
	}

	ss.DeleteItem(cheap.ID)
	gone, _ := ss.GetItem(cheap.ID)
	if gone != nil {
		t.Error("expected item deleted")
	}
}

func TestShopInventoryStacksConsumables(t *testing.T) {
	ss, m := setupShopTest(t)
	shield, _ := ss.CreateItem(model.ShopItem{Name: "Escudo", Cost: 50, Effect: model.EffectShield, Category: model.CategoryOther})

	ss.AddToInventory(m.ID, shield.ID)
	ss.AddToInventory(m.ID, shield.ID)

	e, err := ss.GetEntryByItem(m.ID, shield.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if e.Quantity != 2 {
		t.Fatalf("quantity = %d, want 2", e.Quantity)
	}
	if e.Item.Effect != model.EffectShield {
		t.Errorf("item effect = %q, want shield", e.Item.Effect)
	}

	ss.ConsumeOne(e.ID)
	e, _ = ss.GetEntry(e.ID)
	if e.Quantity != 1 {
		t.Fatalf("quantity = %d, want 1", e.Quantity)
	}
	if err := ss.ConsumeOne(e.ID); err != nil {
		t.Fatalf("consume last: %v", err)
	}
	gone, _ := ss.GetEntry(e.ID)
	if gone != nil {
		t.Error("expected entry deleted at zero")
	}
	if err := ss.ConsumeOne(e.ID); !errors.Is(err, ErrNoRowsAffected) {
		t.Errorf("consume missing: err = %v, want ErrNoRowsAffected", err)
	}
}

func TestShopInsertOnceRejectsDuplicate(t *testing.T) {
	ss, m := setupShopTest(t)
	hat, _ := ss.CreateItem(model.ShopItem{Name: "Gorro", Cost: 20, Category: model.CategoryHat, Effect: model.EffectCosmetic})

	if err := ss.InsertOnce(m.ID, hat.ID); err != nil {
		t.Fatalf("insert once: %v", err)
	}
	if err := ss.InsertOnce(m.ID, hat.ID); !IsUniqueViolation(err) {
		t.Errorf("err = %v, want unique violation", err)
	}
}

func TestShopUnequipCategory(t *testing.T) {
	ss, m := setupShopTest(t)
	space, _ := ss.CreateItem(model.ShopItem{Name: "Espacio", Category: model.CategoryBackground, Effect: model.EffectCosmetic})
	beach, _ := ss.CreateItem(model.ShopItem{Name: "Playa", Category: model.CategoryBackground, Effect: model.EffectCosmetic})
	hat, _ := ss.CreateItem(model.ShopItem{Name: "Gorro", Category: model.CategoryHat, Effect: model.EffectCosmetic})
	for _, id := range []int64{space.ID, beach.ID, hat.ID} {
		ss.InsertOnce(m.ID, id)
		e, _ := ss.GetEntryByItem(m.ID, id)
		ss.SetEquipped(e.ID, true)
	}

	if err := ss.UnequipCategory(m.ID, model.CategoryBackground); err != nil {
		t.Fatalf("unequip category: %v", err)
	}
	n, _ := ss.CountEquipped(m.ID, model.CategoryBackground)
	if n != 0 {
		t.Errorf("equipped backgrounds = %d, want 0", n)
	}
	n, _ = ss.CountEquipped(m.ID, model.CategoryHat)
	if n != 1 {
		t.Errorf("equipped hats = %d, want 1", n)
	}

	entries, err := ss.ListInventory(m.ID)
	if err != nil {
		t.Fatalf("list inventory: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("len = %d, want 3", len(entries))
	}
}
