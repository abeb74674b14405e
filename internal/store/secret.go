package store

import (
	"database/sql"
	"fmt"
)

// SecretStore keeps admin secrets. Values arrive already sealed.
type SecretStore struct {
	db querier
}

func NewSecretStore(db *sql.DB) *SecretStore {
	return &SecretStore{db: db}
}

func (s *SecretStore) Put(key string, sealed []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO admin_secrets (key, sealed_value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET sealed_value = excluded.sealed_value, updated_at = CURRENT_TIMESTAMP`,
		key, sealed,
	)
	if err != nil {
		return fmt.Errorf("put secret: %w", err)
	}
	return nil
}

// Get returns the sealed value for key, or nil when unset.
func (s *SecretStore) Get(key string) ([]byte, error) {
	var sealed []byte
	err := s.db.QueryRow(`SELECT sealed_value FROM admin_secrets WHERE key = ?`, key).Scan(&sealed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return sealed, nil
}

func (s *SecretStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM admin_secrets WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}
