package model

import "time"

type GoalStatus string

const (
	GoalPending  GoalStatus = "pending"
	GoalRedeemed GoalStatus = "redeemed"
)

const (
	DefaultGoalTarget = 500
	DefaultGoalEmoji  = "🏆"
)

type FamilyGoal struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	TargetPoints  int        `json:"target_points"`
	CurrentPoints int        `json:"current_points"`
	Emoji         string     `json:"emoji"`
	IsActive      bool       `json:"is_active"`
	IsRedeemed    bool       `json:"is_redeemed"`
	Status        GoalStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (g FamilyGoal) Reached() bool {
	return g.CurrentPoints >= g.TargetPoints
}
