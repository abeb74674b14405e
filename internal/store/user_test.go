package store

import (
	"testing"

	"github.com/dukerupert/chorequest/internal/model"
)

func TestUserCreate(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create("12345678", "Ana", "hash", model.RoleMember)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if u.DNI != "12345678" {
		t.Errorf("dni = %q, want %q", u.DNI, "12345678")
	}
	if u.Role != model.RoleMember {
		t.Errorf("role = %q, want %q", u.Role, model.RoleMember)
	}
	if u.OnboardingCompleted {
		t.Error("expected onboarding_completed = false")
	}
}

func TestUserCreateDuplicateDNI(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	if _, err := us.Create("12345678", "Ana", "hash", model.RoleMember); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := us.Create("12345678", "Otra", "hash", model.RoleMember)
	if !IsUniqueViolation(err) {
		t.Fatalf("err = %v, want unique violation", err)
	}
}

func TestUserGetByDNI(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	us.Create("12345678", "Ana", "hash", model.RoleAdmin)

	u, err := us.GetByDNI("12345678")
	if err != nil {
		t.Fatalf("get by dni: %v", err)
	}
	if u == nil || u.Name != "Ana" {
		t.Fatalf("user = %+v, want Ana", u)
	}
	if !u.IsAdmin() {
		t.Error("expected admin role")
	}

	missing, err := us.GetByDNI("87654321")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown dni")
	}
}

func TestUserCompleteOnboarding(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, _ := us.Create("12345678", "Ana", "hash", model.RoleMember)
	got, err := us.CompleteOnboarding(u.ID, "/avatars/cat.png")
	if err != nil {
		t.Fatalf("complete onboarding: %v", err)
	}
	if !got.OnboardingCompleted {
		t.Error("expected onboarding_completed = true")
	}
	if got.AvatarURL != "/avatars/cat.png" {
		t.Errorf("avatar_url = %q, want %q", got.AvatarURL, "/avatars/cat.png")
	}
}

func TestUserSetRoleAndAdmins(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	a, _ := us.Create("11111111", "Ana", "hash", model.RoleMember)
	us.Create("22222222", "Beto", "hash", model.RoleMember)

	got, err := us.SetRole(a.ID, model.RoleAdmin)
	if err != nil {
		t.Fatalf("set role: %v", err)
	}
	if got.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", got.Role)
	}

	ids, err := us.ListAdminIDs()
	if err != nil {
		t.Fatalf("list admin ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != a.ID {
		t.Errorf("admin ids = %v, want [%d]", ids, a.ID)
	}

	missing, err := us.SetRole(999, model.RoleAdmin)
	if err != nil {
		t.Fatalf("set role missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown user")
	}
}
