package secret

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukerupert/chorequest/internal/database"
	"github.com/dukerupert/chorequest/internal/store"
)

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)

	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
	if bytes.Equal(key1, DeriveKey("other", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := NewSealer("correct horse")
	plaintext := []byte("vercel-token-123")

	sealed, err := s.Seal(plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("sealed value leaks the plaintext")
	}

	again, _ := s.Seal(plaintext)
	if bytes.Equal(sealed, again) {
		t.Error("two seals of the same value should differ")
	}

	got, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("open = %q, want %q", got, plaintext)
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, _ := NewSealer("right").Seal([]byte("data"))
	if _, err := NewSealer("wrong").Open(sealed); err == nil {
		t.Fatal("expected error with wrong passphrase")
	}
}

func TestOpenTampered(t *testing.T) {
	s := NewSealer("pass")
	sealed, _ := s.Seal([]byte("data"))
	sealed[len(sealed)-1] ^= 0xff
	if _, err := s.Open(sealed); err == nil {
		t.Fatal("expected error for tampered value")
	}
}

func TestOpenTooShort(t *testing.T) {
	if _, err := NewSealer("pass").Open([]byte("short")); !errors.Is(err, ErrTooShort) {
		t.Errorf("err = %v, want ErrTooShort", err)
	}
}

func TestNoPassphrase(t *testing.T) {
	var s *Sealer
	if s.Enabled() {
		t.Error("nil sealer should be disabled")
	}
	if _, err := NewSealer("").Seal([]byte("x")); !errors.Is(err, ErrNoPassphrase) {
		t.Errorf("err = %v, want ErrNoPassphrase", err)
	}
}

func TestSealFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.db")
	enc := filepath.Join(dir, "source.db.enc")
	dec := filepath.Join(dir, "restored.db")

	original := []byte("SQLite format 3\x00 with some rows")
	if err := os.WriteFile(src, original, 0600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	s := NewSealer("backup-pass")
	if err := s.SealFile(src, enc); err != nil {
		t.Fatalf("seal file: %v", err)
	}
	if err := s.OpenFile(enc, dec); err != nil {
		t.Fatalf("open file: %v", err)
	}
	got, _ := os.ReadFile(dec)
	if !bytes.Equal(got, original) {
		t.Error("restored content does not match original")
	}
}

func TestVault(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	secrets := store.NewSecretStore(db)
	v := NewVault(secrets, NewSealer("server-key"))

	if got, err := v.Get("vercel_token"); err != nil || got != "" {
		t.Fatalf("unset secret = %q, %v", got, err)
	}
	if err := v.Put("vercel_token", "tok-abc"); err != nil {
		t.Fatalf("put: %v", err)
	}

	raw, _ := secrets.Get("vercel_token")
	if bytes.Contains(raw, []byte("tok-abc")) {
		t.Error("stored value is not sealed")
	}

	got, err := v.Get("vercel_token")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "tok-abc" {
		t.Errorf("get = %q, want tok-abc", got)
	}

	if err := v.Delete("vercel_token"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := v.Get("vercel_token"); got != "" {
		t.Errorf("after delete = %q, want empty", got)
	}
}
