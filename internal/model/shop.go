package model

import "time"

// Effect is what a shop item does when equipped or used.
type Effect string

const (
	EffectCosmetic     Effect = "cosmetic"
	EffectShield       Effect = "shield"
	EffectDoublePoints Effect = "double_points"
	EffectInvisibility Effect = "invisibility"
	EffectVisual       Effect = "visual_effect"
	EffectVoucher      Effect = "voucher"
	EffectJoker        Effect = "joker"
)

func (e Effect) Valid() bool {
	switch e {
	case EffectCosmetic, EffectShield, EffectDoublePoints, EffectInvisibility,
		EffectVisual, EffectVoucher, EffectJoker:
		return true
	}
	return false
}

// Consumable reports whether using the item destroys one unit of it.
func (e Effect) Consumable() bool {
	return e != EffectCosmetic
}

type Category string

const (
	CategoryHat        Category = "hat"
	CategoryLenses     Category = "lenses"
	CategoryCrown      Category = "crown"
	CategoryCape       Category = "cape"
	CategoryBackground Category = "background"
	CategorySkin       Category = "skin"
	CategoryNickname   Category = "nickname"
	CategoryTravesura  Category = "travesura"
	CategoryVFX        Category = "vfx"
	CategoryVoucher    Category = "voucher"
	CategoryOther      Category = "other"
)

var categories = map[Category]bool{
	CategoryHat: true, CategoryLenses: true, CategoryCrown: true, CategoryCape: true,
	CategoryBackground: true, CategorySkin: true, CategoryNickname: true,
	CategoryTravesura: true, CategoryVFX: true, CategoryVoucher: true, CategoryOther: true,
}

func (c Category) Valid() bool {
	return categories[c]
}

// OneTime reports whether a member may own at most one of the item.
func (c Category) OneTime() bool {
	switch c {
	case CategoryHat, CategoryLenses, CategoryCrown, CategoryCape,
		CategorySkin, CategoryBackground, CategoryNickname:
		return true
	}
	return false
}

// Exclusive reports whether only one item of the category may be equipped.
func (c Category) Exclusive() bool {
	return c == CategoryBackground || c == CategorySkin
}

const DefaultEffectHours = 24

type ShopItem struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Cost        int       `json:"cost"`
	Icon        string    `json:"icon"`
	Category    Category  `json:"category"`
	Effect      Effect    `json:"effect"`
	EffectHours int       `json:"effect_hours"`
	EffectValue string    `json:"effect_value"`
	CreatedAt   time.Time `json:"created_at"`
}

// Duration is the buff length for timed effects.
func (i ShopItem) Duration() time.Duration {
	h := i.EffectHours
	if h <= 0 {
		h = DefaultEffectHours
	}
	return time.Duration(h) * time.Hour
}

type InventoryEntry struct {
	ID         int64     `json:"id"`
	MemberID   int64     `json:"member_id"`
	ItemID     int64     `json:"item_id"`
	Quantity   int       `json:"quantity"`
	Equipped   bool      `json:"equipped"`
	AcquiredAt time.Time `json:"acquired_at"`
	Item       ShopItem  `json:"item"`
}
