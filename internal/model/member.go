package model

import "time"

// FamilyMember is the gamification profile of a household member. Members
// created by an admin have no linked user and cannot log in.
type FamilyMember struct {
	ID                 int64      `json:"id"`
	UserID             *int64     `json:"user_id"`
	Name               string     `json:"name"`
	AvatarURL          string     `json:"avatar_url"`
	TotalPoints        int        `json:"total_points"`
	StreakCount        int        `json:"streak_count"`
	LongestStreak      int        `json:"longest_streak"`
	ShieldHP           int        `json:"shield_hp"`
	LastStreakUpdate   string     `json:"last_streak_update,omitempty"`
	PetName            string     `json:"pet_name"`
	SelectedBackground string     `json:"selected_background,omitempty"`
	SelectedSkin       string     `json:"selected_skin,omitempty"`
	HiddenUntil        *time.Time `json:"hidden_until,omitempty"`
	DoublePointsUntil  *time.Time `json:"double_points_until,omitempty"`
	ActiveVFX          []string   `json:"active_vfx"`
	CreatedAt          time.Time  `json:"created_at"`

	// Hidden is set on copies served to other members while this one is
	// invisible. TotalPoints is zeroed on those copies.
	Hidden bool `json:"hidden,omitempty"`
}

func (m FamilyMember) IsHidden(now time.Time) bool {
	return m.HiddenUntil != nil && m.HiddenUntil.After(now)
}

func (m FamilyMember) DoublePointsActive(now time.Time) bool {
	return m.DoublePointsUntil != nil && m.DoublePointsUntil.After(now)
}

func (m FamilyMember) HasVFX(name string) bool {
	for _, v := range m.ActiveVFX {
		if v == name {
			return true
		}
	}
	return false
}

// LeaderboardEntry is a member as seen by a particular viewer. Points and
// rank are withheld while another member is invisible.
type LeaderboardEntry struct {
	Rank               int      `json:"rank,omitempty"`
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	AvatarURL          string   `json:"avatar_url"`
	TotalPoints        *int     `json:"total_points,omitempty"`
	StreakCount        int      `json:"streak_count"`
	ShieldHP           int      `json:"shield_hp"`
	PetName            string   `json:"pet_name"`
	SelectedBackground string   `json:"selected_background,omitempty"`
	SelectedSkin       string   `json:"selected_skin,omitempty"`
	ActiveVFX          []string `json:"active_vfx"`
	Hidden             bool     `json:"hidden"`
}
