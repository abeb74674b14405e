package secret

import (
	"fmt"

	"github.com/dukerupert/chorequest/internal/store"
)

// Vault keeps admin secrets sealed at rest in the admin_secrets table.
type Vault struct {
	store  *store.SecretStore
	sealer *Sealer
}

func NewVault(s *store.SecretStore, sealer *Sealer) *Vault {
	return &Vault{store: s, sealer: sealer}
}

func (v *Vault) Put(key, value string) error {
	sealed, err := v.sealer.Seal([]byte(value))
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return v.store.Put(key, sealed)
}

// Get returns the plaintext for key, or "" when it was never stored.
func (v *Vault) Get(key string) (string, error) {
	sealed, err := v.store.Get(key)
	if err != nil {
		return "", err
	}
	if sealed == nil {
		return "", nil
	}
	plaintext, err := v.sealer.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", key, err)
	}
	return string(plaintext), nil
}

func (v *Vault) Delete(key string) error {
	return v.store.Delete(key)
}
