package task

import (
	"time"

	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/model"
)

// BuildCalendar lays out the Monday-start weeks that cover month. Daily
// tasks appear on every day. Other tasks appear on each day from their due
// day through their end day and disappear once completed.
func BuildCalendar(tasks []model.TaskWithAssignee, year int, month time.Month, clk clock.Clock) []model.CalendarDay {
	loc := clk.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)

	// time.Weekday has Sunday = 0; shift so Monday = 0.
	start := first.AddDate(0, 0, -((int(first.Weekday()) + 6) % 7))
	end := last.AddDate(0, 0, (7-int(last.Weekday()))%7)

	today := clk.Today()
	var days []model.CalendarDay
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		stamp := d.Format(clock.DayLayout)
		day := model.CalendarDay{
			Date:    stamp,
			InMonth: d.Month() == month,
			IsToday: stamp == today,
			Tasks:   []model.TaskWithAssignee{},
		}
		for _, t := range tasks {
			if showsOn(t.Task, stamp, clk) {
				day.Tasks = append(day.Tasks, t)
			}
		}
		days = append(days, day)
	}
	return days
}

func showsOn(t model.Task, stamp string, clk clock.Clock) bool {
	if t.IsDaily {
		return true
	}
	if t.IsCompleted || t.DueDate == nil {
		return false
	}
	from := clk.DayStamp(*t.DueDate)
	to := from
	if t.EndDate != nil {
		to = clk.DayStamp(*t.EndDate)
	}
	return stamp >= from && stamp <= to
}
