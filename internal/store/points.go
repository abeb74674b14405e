package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorequest/internal/model"
)

// PointStore is the append-only ledger of point changes and item use.
type PointStore struct {
	db querier
}

func NewPointStore(db *sql.DB) *PointStore {
	return &PointStore{db: db}
}

func (s *PointStore) WithTx(tx *sql.Tx) *PointStore {
	return &PointStore{db: tx}
}

const pointEventCols = `id, member_id, delta, reason, task_id, item_id, created_at`

func (s *PointStore) Record(memberID int64, delta int, reason model.PointReason, taskID, itemID *int64) error {
	_, err := s.db.Exec(
		`INSERT INTO point_events (member_id, delta, reason, task_id, item_id) VALUES (?, ?, ?, ?, ?)`,
		memberID, delta, reason, nullInt64(taskID), nullInt64(itemID),
	)
	if err != nil {
		return fmt.Errorf("record point event: %w", err)
	}
	return nil
}

// ListByMember returns a member's ledger, newest first.
func (s *PointStore) ListByMember(memberID int64, limit int) ([]model.PointEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT `+pointEventCols+` FROM point_events WHERE member_id = ? ORDER BY id DESC LIMIT ?`,
		memberID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list point events: %w", err)
	}
	defer rows.Close()

	var events []model.PointEvent
	for rows.Next() {
		var e model.PointEvent
		var taskID, itemID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.MemberID, &e.Delta, &e.Reason, &taskID, &itemID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan point event: %w", err)
		}
		e.TaskID = int64Ptr(taskID)
		e.ItemID = int64Ptr(itemID)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Sum returns the net delta recorded for a member.
func (s *PointStore) Sum(memberID int64) (int, error) {
	var total int
	err := s.db.QueryRow(`SELECT COALESCE(SUM(delta), 0) FROM point_events WHERE member_id = ?`, memberID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum point events: %w", err)
	}
	return total, nil
}
