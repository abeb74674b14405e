// Package rollover applies overdue penalties, resets daily tasks and steps
// member streaks once per household day.
package rollover

import (
	"time"

	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/scoring"
)

type StreakOutcome string

const (
	StreakExtended StreakOutcome = "extended"
	ShieldUsed     StreakOutcome = "shield_used"
	StreakBroken   StreakOutcome = "broken"
)

type PenaltyAction struct {
	TaskID     int64
	AssigneeID *int64
	Amount     int
}

type StreakAction struct {
	MemberID int64
	Streak   int
	Longest  int
	Shield   int
	Outcome  StreakOutcome
}

// Plan is the set of writes one evaluation needs.
type Plan struct {
	Penalties []PenaltyAction
	Resets    []int64
	Streaks   []StreakAction
}

func (p Plan) Empty() bool {
	return len(p.Penalties) == 0 && len(p.Resets) == 0 && len(p.Streaks) == 0
}

// dailySummary is computed before any reset so a reset cannot make an
// unfinished day look complete.
type dailySummary struct {
	hasDaily bool
	allDone  bool
}

// BuildPlan decides every write for one evaluation from a snapshot of tasks
// and members. now is compared against due dates; today is the household
// day stamp.
func BuildPlan(tasks []model.Task, members []model.FamilyMember, now time.Time, today string) Plan {
	var plan Plan
	summaries := make(map[int64]*dailySummary)

	for _, t := range tasks {
		if t.IsDaily {
			if t.AssigneeID != nil {
				s, ok := summaries[*t.AssigneeID]
				if !ok {
					s = &dailySummary{hasDaily: true, allDone: true}
					summaries[*t.AssigneeID] = s
				}
				if t.LastResetDate != today && !t.IsCompleted {
					s.allDone = false
				}
			}

			if t.LastResetDate == today {
				continue
			}
			if !t.IsCompleted && !t.PenaltyApplied {
				plan.Penalties = append(plan.Penalties, PenaltyAction{
					TaskID:     t.ID,
					AssigneeID: t.AssigneeID,
					Amount:     scoring.Penalty(t.Points),
				})
			}
			plan.Resets = append(plan.Resets, t.ID)
			continue
		}

		if t.IsCompleted || t.PenaltyApplied || t.DueDate == nil {
			continue
		}
		if t.DueDate.Before(now) {
			plan.Penalties = append(plan.Penalties, PenaltyAction{
				TaskID:     t.ID,
				AssigneeID: t.AssigneeID,
				Amount:     scoring.Penalty(t.Points),
			})
		}
	}

	for _, m := range members {
		s, ok := summaries[m.ID]
		if !ok || !s.hasDaily || m.LastStreakUpdate == today {
			continue
		}
		plan.Streaks = append(plan.Streaks, nextStreak(m, s.allDone))
	}

	return plan
}

func nextStreak(m model.FamilyMember, allDone bool) StreakAction {
	a := StreakAction{
		MemberID: m.ID,
		Streak:   m.StreakCount,
		Longest:  m.LongestStreak,
		Shield:   m.ShieldHP,
	}
	switch {
	case allDone:
		a.Streak++
		a.Outcome = StreakExtended
	case m.ShieldHP > 0:
		a.Shield--
		a.Outcome = ShieldUsed
	default:
		a.Streak = 0
		a.Outcome = StreakBroken
	}
	if a.Streak > a.Longest {
		a.Longest = a.Streak
	}
	return a
}
