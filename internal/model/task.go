package model

import "time"

type MissionType string

const (
	MissionMandatory MissionType = "mandatory"
	MissionOptional  MissionType = "optional"
)

const DefaultTaskPoints = 10

type Task struct {
	ID               int64       `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	DueDate          *time.Time  `json:"due_date"`
	EndDate          *time.Time  `json:"end_date"`
	Duration         string      `json:"duration"`
	AssigneeID       *int64      `json:"assignee_id"`
	IsCompleted      bool        `json:"is_completed"`
	IsDaily          bool        `json:"is_daily"`
	LastResetDate    string      `json:"last_reset_date,omitempty"`
	Points           int         `json:"points"`
	MissionType      MissionType `json:"mission_type"`
	PenaltyApplied   bool        `json:"penalty_applied"`
	EvidenceURL      string      `json:"evidence_url,omitempty"`
	EvidenceThumbURL string      `json:"evidence_thumb_url,omitempty"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
	Stolen           bool        `json:"stolen"`
	ReminderActive   bool        `json:"reminder_active"`
	CreatedBy        *int64      `json:"created_by"`
	CreatedAt        time.Time   `json:"created_at"`
}

// TaskWithAssignee is a task joined with its assignee's display fields.
type TaskWithAssignee struct {
	Task
	AssigneeName   string `json:"assignee_name"`
	AssigneeAvatar string `json:"assignee_avatar"`
}

type TaskTemplate struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// CalendarDay lists the tasks shown on one day of the calendar grid.
type CalendarDay struct {
	Date    string             `json:"date"`
	InMonth bool               `json:"in_month"`
	IsToday bool               `json:"is_today"`
	Tasks   []TaskWithAssignee `json:"tasks"`
}
