package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorequest/internal/model"
)

type UserStore struct {
	db querier
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) WithTx(tx *sql.Tx) *UserStore {
	return &UserStore{db: tx}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var onboarded int
	err := scanner.Scan(&u.ID, &u.DNI, &u.Name, &u.PasswordHash, &u.AvatarURL, &u.Role, &onboarded, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.OnboardingCompleted = onboarded != 0
	return &u, nil
}

const userCols = `id, dni, name, password_hash, avatar_url, role, onboarding_completed, created_at`

// Create inserts a user. A duplicate DNI surfaces as a unique violation.
func (s *UserStore) Create(dni, name, passwordHash string, role model.Role) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (dni, name, password_hash, role) VALUES (?, ?, ?, ?)`,
		dni, name, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByDNI(dni string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE dni = ?`, dni)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by dni: %w", err)
	}
	return u, nil
}

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ListAdminIDs returns the ids of every admin user.
func (s *UserStore) ListAdminIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM users WHERE role = ?`, model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admin ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CompleteOnboarding stores the chosen avatar and flips the onboarding flag.
func (s *UserStore) CompleteOnboarding(id int64, avatarURL string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET avatar_url = ?, onboarding_completed = 1 WHERE id = ?`,
		avatarURL, id,
	)
	if err != nil {
		return nil, fmt.Errorf("complete onboarding: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) SetRole(id int64, role model.Role) (*model.User, error) {
	result, err := s.db.Exec(`UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}
	if err := requireOneRow(result); err != nil {
		return nil, nil
	}
	return s.GetByID(id)
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
