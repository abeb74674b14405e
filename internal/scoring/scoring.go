// Package scoring holds the point arithmetic shared by task completion and
// the nightly evaluator.
package scoring

import "github.com/dukerupert/chorequest/internal/model"

// StreakBonusThreshold is the streak length at which awards double.
const StreakBonusThreshold = 3

// Award returns the points granted for completing a task worth points.
// Each active modifier doubles the result: a streak of at least three days,
// a stolen task and a running double-points buff.
func Award(points, streak int, stolen, doubleActive bool) int {
	award := points
	if streak >= StreakBonusThreshold {
		award *= 2
	}
	if stolen {
		award *= 2
	}
	if doubleActive {
		award *= 2
	}
	return award
}

// Penalty returns the debit for a missed task: twice its value, with a
// zero-point task counted as the default value.
func Penalty(points int) int {
	if points <= 0 {
		points = model.DefaultTaskPoints
	}
	return points * 2
}
