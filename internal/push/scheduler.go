package push

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/chorequest/internal/model"
)

// Scheduler periodically sends reminders for tasks that are about to fall due.
type Scheduler struct {
	mu       sync.RWMutex
	notifier *Notifier
	lead     time.Duration
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(notifier *Notifier, lead time.Duration, logger *slog.Logger) *Scheduler {
	if lead <= 0 {
		lead = 5 * time.Minute
	}
	return &Scheduler{
		notifier: notifier,
		lead:     lead,
		interval: 60 * time.Second,
		logger:   logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.notifier.Enabled() {
		return
	}
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.CheckTaskReminders(ctx); err != nil {
					s.logger.Error("task reminders", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// CheckTaskReminders notifies assignees of open reminder-enabled tasks due
// within the lead window. Each task is reminded once.
func (s *Scheduler) CheckTaskReminders(ctx context.Context) (int, error) {
	n := s.notifier
	now := n.clock.Now()
	tasks, err := n.tasks.ListDueForReminder(now, now.Add(s.lead))
	if err != nil {
		return 0, err
	}

	leadMinutes := int(s.lead / time.Minute)
	reminded := 0
	for _, t := range tasks {
		refID := fmt.Sprintf("task-%d", t.ID)
		sent, err := n.subs.WasSent(model.NotifTypeTaskDue, refID, leadMinutes)
		if err != nil {
			return reminded, err
		}
		if sent {
			continue
		}

		minutes := int(t.DueDate.Sub(now).Round(time.Minute) / time.Minute)
		payload := Payload{
			Title: "Task due soon",
			Body:  fmt.Sprintf("%s is due in %d minutes", t.Title, minutes),
			URL:   "/tasks",
			Tag:   refID,
		}
		if _, err := n.NotifyMember(ctx, *t.AssigneeID, payload); err != nil {
			s.logger.Warn("task reminder failed", "task_id", t.ID, "error", err)
			continue
		}
		if err := n.subs.RecordSent(model.NotifTypeTaskDue, refID, leadMinutes); err != nil {
			return reminded, err
		}
		reminded++
	}
	return reminded, nil
}
