package model

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type User struct {
	ID                  int64     `json:"id"`
	DNI                 string    `json:"dni"`
	Name                string    `json:"name"`
	PasswordHash        string    `json:"-"`
	AvatarURL           string    `json:"avatar_url"`
	Role                Role      `json:"role"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
