package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/chorequest/internal/model"
)

// MemberStore persists family members. Every point, shield and streak change
// is a single UPDATE so concurrent writers cannot lose each other's updates.
type MemberStore struct {
	db querier
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

func (s *MemberStore) WithTx(tx *sql.Tx) *MemberStore {
	return &MemberStore{db: tx}
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.FamilyMember, error) {
	var m model.FamilyMember
	var userID sql.NullInt64
	var lastStreak, background, skin sql.NullString
	var hiddenUntil, doubleUntil sql.NullTime
	var vfx string

	err := scanner.Scan(
		&m.ID, &userID, &m.Name, &m.AvatarURL, &m.TotalPoints, &m.StreakCount,
		&m.LongestStreak, &m.ShieldHP, &lastStreak, &m.PetName, &background, &skin,
		&hiddenUntil, &doubleUntil, &vfx, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.UserID = int64Ptr(userID)
	m.LastStreakUpdate = lastStreak.String
	m.SelectedBackground = background.String
	m.SelectedSkin = skin.String
	m.HiddenUntil = timePtr(hiddenUntil)
	m.DoublePointsUntil = timePtr(doubleUntil)
	if err := json.Unmarshal([]byte(vfx), &m.ActiveVFX); err != nil {
		return nil, fmt.Errorf("decode active_vfx: %w", err)
	}
	if m.ActiveVFX == nil {
		m.ActiveVFX = []string{}
	}
	return &m, nil
}

const memberCols = `id, user_id, name, avatar_url, total_points, streak_count, longest_streak, shield_hp,
	last_streak_update, pet_name, selected_background, selected_skin, hidden_until, double_points_until,
	active_vfx, created_at`

func (s *MemberStore) Create(name, avatarURL string, userID *int64) (*model.FamilyMember, error) {
	result, err := s.db.Exec(
		`INSERT INTO family_members (name, avatar_url, user_id) VALUES (?, ?, ?)`,
		name, avatarURL, nullInt64(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert family member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MemberStore) GetByID(id int64) (*model.FamilyMember, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM family_members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) GetByUserID(userID int64) (*model.FamilyMember, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM family_members WHERE user_id = ?`, userID)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family member by user: %w", err)
	}
	return m, nil
}

// List returns members ordered for the leaderboard: points descending.
func (s *MemberStore) List() ([]model.FamilyMember, error) {
	rows, err := s.db.Query(`SELECT ` + memberCols + ` FROM family_members ORDER BY total_points DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MemberStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM family_members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete family member: %w", err)
	}
	return nil
}

// AddPoints credits (or debits, with a negative delta) a member's balance.
func (s *MemberStore) AddPoints(id int64, delta int) error {
	result, err := s.db.Exec(
		`UPDATE family_members SET total_points = total_points + ? WHERE id = ?`,
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return requireOneRow(result)
}

// SpendPoints debits cost only when the balance covers it. ErrNoRowsAffected
// means the member is missing or cannot afford it.
func (s *MemberStore) SpendPoints(id int64, cost int) error {
	result, err := s.db.Exec(
		`UPDATE family_members SET total_points = total_points - ? WHERE id = ? AND total_points >= ?`,
		cost, id, cost,
	)
	if err != nil {
		return fmt.Errorf("spend points: %w", err)
	}
	return requireOneRow(result)
}

func (s *MemberStore) SetPoints(id int64, points int) error {
	result, err := s.db.Exec(`UPDATE family_members SET total_points = ? WHERE id = ?`, points, id)
	if err != nil {
		return fmt.Errorf("set points: %w", err)
	}
	return requireOneRow(result)
}

// Gift adds point and shield deltas in one statement. Shields never drop
// below zero.
func (s *MemberStore) Gift(id int64, points, shields int) error {
	result, err := s.db.Exec(
		`UPDATE family_members SET total_points = total_points + ?, shield_hp = MAX(0, shield_hp + ?) WHERE id = ?`,
		points, shields, id,
	)
	if err != nil {
		return fmt.Errorf("gift member: %w", err)
	}
	return requireOneRow(result)
}

func (s *MemberStore) AddShield(id int64) error {
	result, err := s.db.Exec(`UPDATE family_members SET shield_hp = shield_hp + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("add shield: %w", err)
	}
	return requireOneRow(result)
}

// ApplyStreak writes the day's streak outcome unless the member was already
// evaluated today.
func (s *MemberStore) ApplyStreak(id int64, streak, longest, shield int, today string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE family_members SET streak_count = ?, longest_streak = ?, shield_hp = ?, last_streak_update = ?
		 WHERE id = ? AND last_streak_update IS NOT ?`,
		streak, longest, shield, today, id, today,
	)
	if err != nil {
		return false, fmt.Errorf("apply streak: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *MemberStore) SetPetName(id int64, petName string) error {
	result, err := s.db.Exec(`UPDATE family_members SET pet_name = ? WHERE id = ?`, petName, id)
	if err != nil {
		return fmt.Errorf("set pet name: %w", err)
	}
	return requireOneRow(result)
}

// SetSelected mirrors an equipped background or skin onto the profile. An
// empty value clears it.
func (s *MemberStore) SetSelected(id int64, category model.Category, value string) error {
	var col string
	switch category {
	case model.CategoryBackground:
		col = "selected_background"
	case model.CategorySkin:
		col = "selected_skin"
	default:
		return fmt.Errorf("set selected: category %q has no profile slot", category)
	}
	_, err := s.db.Exec(`UPDATE family_members SET `+col+` = ? WHERE id = ?`, nullString(value), id)
	if err != nil {
		return fmt.Errorf("set selected %s: %w", category, err)
	}
	return nil
}

// StartDoublePoints sets the buff unless one is still running at now.
func (s *MemberStore) StartDoublePoints(id int64, now, until time.Time) error {
	result, err := s.db.Exec(
		`UPDATE family_members SET double_points_until = ?
		 WHERE id = ? AND (double_points_until IS NULL OR double_points_until <= ?)`,
		until.UTC(), id, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("start double points: %w", err)
	}
	return requireOneRow(result)
}

func (s *MemberStore) SetHiddenUntil(id int64, until time.Time) error {
	result, err := s.db.Exec(`UPDATE family_members SET hidden_until = ? WHERE id = ?`, until.UTC(), id)
	if err != nil {
		return fmt.Errorf("set hidden until: %w", err)
	}
	return requireOneRow(result)
}

// AddVFX appends a visual effect unless the member already has it.
func (s *MemberStore) AddVFX(id int64, name string) error {
	result, err := s.db.Exec(
		`UPDATE family_members SET active_vfx = json_insert(active_vfx, '$[#]', ?)
		 WHERE id = ? AND NOT EXISTS (SELECT 1 FROM json_each(family_members.active_vfx) WHERE value = ?)`,
		name, id, name,
	)
	if err != nil {
		return fmt.Errorf("add vfx: %w", err)
	}
	return requireOneRow(result)
}
