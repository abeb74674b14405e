package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorequest/internal/model"
)

type GoalStore struct {
	db querier
}

func NewGoalStore(db *sql.DB) *GoalStore {
	return &GoalStore{db: db}
}

func (s *GoalStore) WithTx(tx *sql.Tx) *GoalStore {
	return &GoalStore{db: tx}
}

const goalCols = `id, title, target_points, current_points, emoji, is_active, is_redeemed, status, created_at`

func scanGoal(scanner interface{ Scan(...any) error }) (*model.FamilyGoal, error) {
	var g model.FamilyGoal
	var active, redeemed int
	err := scanner.Scan(&g.ID, &g.Title, &g.TargetPoints, &g.CurrentPoints, &g.Emoji, &active, &redeemed, &g.Status, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.IsActive = active != 0
	g.IsRedeemed = redeemed != 0
	return &g, nil
}

// Create inserts a goal. The first goal in an empty table starts active.
func (s *GoalStore) Create(title string, target int, emoji string) (*model.FamilyGoal, error) {
	if target <= 0 {
		target = model.DefaultGoalTarget
	}
	if emoji == "" {
		emoji = model.DefaultGoalEmoji
	}
	result, err := s.db.Exec(
		`INSERT INTO family_goals (title, target_points, emoji, status, is_active)
		 VALUES (?, ?, ?, ?, CASE WHEN EXISTS (SELECT 1 FROM family_goals) THEN 0 ELSE 1 END)`,
		title, target, emoji, model.GoalPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *GoalStore) GetByID(id int64) (*model.FamilyGoal, error) {
	row := s.db.QueryRow(`SELECT `+goalCols+` FROM family_goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (s *GoalStore) GetActive() (*model.FamilyGoal, error) {
	row := s.db.QueryRow(`SELECT ` + goalCols + ` FROM family_goals WHERE is_active = 1`)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active goal: %w", err)
	}
	return g, nil
}

// List returns the active goal first, then newest first.
func (s *GoalStore) List() ([]model.FamilyGoal, error) {
	rows, err := s.db.Query(`SELECT ` + goalCols + ` FROM family_goals ORDER BY is_active DESC, created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []model.FamilyGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func (s *GoalStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM family_goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// Activate makes id the single active goal. Run it inside a transaction so
// the clear and the set land together.
func (s *GoalStore) Activate(id int64) error {
	if _, err := s.db.Exec(`UPDATE family_goals SET is_active = 0 WHERE is_active = 1 AND id != ?`, id); err != nil {
		return fmt.Errorf("clear active goal: %w", err)
	}
	result, err := s.db.Exec(`UPDATE family_goals SET is_active = 1 WHERE id = ? AND is_redeemed = 0`, id)
	if err != nil {
		return fmt.Errorf("activate goal: %w", err)
	}
	return requireOneRow(result)
}

// AddProgress moves the active goal's progress by delta, never below zero.
func (s *GoalStore) AddProgress(delta int) error {
	_, err := s.db.Exec(
		`UPDATE family_goals SET current_points = MAX(0, current_points + ?) WHERE is_active = 1 AND is_redeemed = 0`,
		delta,
	)
	if err != nil {
		return fmt.Errorf("add goal progress: %w", err)
	}
	return nil
}

// Redeem marks a reached goal as redeemed. ErrNoRowsAffected means the goal
// is missing, already redeemed or below target.
func (s *GoalStore) Redeem(id int64) error {
	result, err := s.db.Exec(
		`UPDATE family_goals SET is_redeemed = 1, is_active = 0, status = ?
		 WHERE id = ? AND is_redeemed = 0 AND current_points >= target_points`,
		model.GoalRedeemed, id,
	)
	if err != nil {
		return fmt.Errorf("redeem goal: %w", err)
	}
	return requireOneRow(result)
}
