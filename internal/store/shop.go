package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorequest/internal/model"
)

type ShopStore struct {
	db querier
}

func NewShopStore(db *sql.DB) *ShopStore {
	return &ShopStore{db: db}
}

func (s *ShopStore) WithTx(tx *sql.Tx) *ShopStore {
	return &ShopStore{db: tx}
}

// --- Item methods ---

const itemCols = `id, name, description, cost, icon, category, effect, effect_hours, effect_value, created_at`

func scanItem(scanner interface{ Scan(...any) error }) (*model.ShopItem, error) {
	var i model.ShopItem
	err := scanner.Scan(&i.ID, &i.Name, &i.Description, &i.Cost, &i.Icon, &i.Category, &i.Effect, &i.EffectHours, &i.EffectValue, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *ShopStore) CreateItem(i model.ShopItem) (*model.ShopItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO shop_items (name, description, cost, icon, category, effect, effect_hours, effect_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.Name, i.Description, i.Cost, i.Icon, i.Category, i.Effect, i.EffectHours, i.EffectValue,
	)
	if err != nil {
		return nil, fmt.Errorf("insert shop item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItem(id)
}

func (s *ShopStore) GetItem(id int64) (*model.ShopItem, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM shop_items WHERE id = ?`, id)
	i, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shop item: %w", err)
	}
	return i, nil
}

// ListItems returns the catalog, cheapest first.
func (s *ShopStore) ListItems() ([]model.ShopItem, error) {
	rows, err := s.db.Query(`SELECT ` + itemCols + ` FROM shop_items ORDER BY cost ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list shop items: %w", err)
	}
	defer rows.Close()

	var items []model.ShopItem
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop item: %w", err)
		}
		items = append(items, *i)
	}
	return items, rows.Err()
}

func (s *ShopStore) UpdateItem(i model.ShopItem) (*model.ShopItem, error) {
	_, err := s.db.Exec(
		`UPDATE shop_items SET name = ?, description = ?, cost = ?, icon = ?, category = ?, effect = ?,
		 effect_hours = ?, effect_value = ? WHERE id = ?`,
		i.Name, i.Description, i.Cost, i.Icon, i.Category, i.Effect, i.EffectHours, i.EffectValue, i.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update shop item: %w", err)
	}
	return s.GetItem(i.ID)
}

func (s *ShopStore) DeleteItem(id int64) error {
	_, err := s.db.Exec(`DELETE FROM shop_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shop item: %w", err)
	}
	return nil
}

// --- Inventory methods ---

const entryCols = `e.id, e.member_id, e.item_id, e.quantity, e.equipped, e.acquired_at,
	i.id, i.name, i.description, i.cost, i.icon, i.category, i.effect, i.effect_hours, i.effect_value, i.created_at`

func scanEntry(scanner interface{ Scan(...any) error }) (*model.InventoryEntry, error) {
	var e model.InventoryEntry
	var equipped int
	err := scanner.Scan(
		&e.ID, &e.MemberID, &e.ItemID, &e.Quantity, &equipped, &e.AcquiredAt,
		&e.Item.ID, &e.Item.Name, &e.Item.Description, &e.Item.Cost, &e.Item.Icon, &e.Item.Category,
		&e.Item.Effect, &e.Item.EffectHours, &e.Item.EffectValue, &e.Item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Equipped = equipped != 0
	return &e, nil
}

func (s *ShopStore) GetEntry(id int64) (*model.InventoryEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+entryCols+` FROM user_inventory e JOIN shop_items i ON i.id = e.item_id WHERE e.id = ?`, id,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory entry: %w", err)
	}
	return e, nil
}

func (s *ShopStore) GetEntryByItem(memberID, itemID int64) (*model.InventoryEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+entryCols+` FROM user_inventory e JOIN shop_items i ON i.id = e.item_id
		 WHERE e.member_id = ? AND e.item_id = ?`, memberID, itemID,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory entry by item: %w", err)
	}
	return e, nil
}

func (s *ShopStore) ListInventory(memberID int64) ([]model.InventoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+entryCols+` FROM user_inventory e JOIN shop_items i ON i.id = e.item_id
		 WHERE e.member_id = ? ORDER BY i.category ASC, i.name ASC`, memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var entries []model.InventoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// AddToInventory grants one unit of an item, stacking onto an existing row.
func (s *ShopStore) AddToInventory(memberID, itemID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO user_inventory (member_id, item_id, quantity) VALUES (?, ?, 1)
		 ON CONFLICT(member_id, item_id) DO UPDATE SET quantity = quantity + 1`,
		memberID, itemID,
	)
	if err != nil {
		return fmt.Errorf("add to inventory: %w", err)
	}
	return nil
}

// InsertOnce grants a one-time item. A second grant is a unique violation.
func (s *ShopStore) InsertOnce(memberID, itemID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO user_inventory (member_id, item_id, quantity) VALUES (?, ?, 1)`,
		memberID, itemID,
	)
	if err != nil {
		return fmt.Errorf("insert inventory entry: %w", err)
	}
	return nil
}

// ConsumeOne removes one unit from an entry, deleting the row at zero.
func (s *ShopStore) ConsumeOne(entryID int64) error {
	result, err := s.db.Exec(`UPDATE user_inventory SET quantity = quantity - 1 WHERE id = ? AND quantity > 1`, entryID)
	if err != nil {
		return fmt.Errorf("decrement inventory: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 1 {
		return nil
	}
	result, err = s.db.Exec(`DELETE FROM user_inventory WHERE id = ? AND quantity = 1`, entryID)
	if err != nil {
		return fmt.Errorf("delete inventory entry: %w", err)
	}
	return requireOneRow(result)
}

func (s *ShopStore) SetEquipped(entryID int64, equipped bool) error {
	result, err := s.db.Exec(`UPDATE user_inventory SET equipped = ? WHERE id = ?`, boolToInt(equipped), entryID)
	if err != nil {
		return fmt.Errorf("set equipped: %w", err)
	}
	return requireOneRow(result)
}

// UnequipCategory unequips every entry of category for a member.
func (s *ShopStore) UnequipCategory(memberID int64, category model.Category) error {
	_, err := s.db.Exec(
		`UPDATE user_inventory SET equipped = 0
		 WHERE member_id = ? AND equipped = 1
		   AND item_id IN (SELECT id FROM shop_items WHERE category = ?)`,
		memberID, category,
	)
	if err != nil {
		return fmt.Errorf("unequip category: %w", err)
	}
	return nil
}

// CountEquipped returns how many entries of category a member has equipped.
func (s *ShopStore) CountEquipped(memberID int64, category model.Category) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM user_inventory e JOIN shop_items i ON i.id = e.item_id
		 WHERE e.member_id = ? AND e.equipped = 1 AND i.category = ?`,
		memberID, category,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count equipped: %w", err)
	}
	return n, nil
}
