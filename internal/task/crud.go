package task

import (
	"context"

	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/websocket"
)

// Create inserts a task on behalf of actor. Daily tasks start stamped with
// today so they are not reset or penalized until tomorrow.
func (s *Service) Create(ctx context.Context, actor Actor, t model.Task) (*model.Task, error) {
	if t.IsDaily {
		t.LastResetDate = s.clock.Today()
	}
	if actor.MemberID != 0 {
		creator := actor.MemberID
		t.CreatedBy = &creator
	}
	created, err := s.tasks.Create(t)
	if err != nil {
		return nil, err
	}
	s.broadcast(websocket.EntityTask, "created", created.ID, nil)
	return created, nil
}

// Update rewrites a task. Only its assignee or an admin may edit it. A task
// that becomes daily is stamped with today, the same as a new daily task.
func (s *Service) Update(ctx context.Context, actor Actor, t model.Task) (*model.Task, error) {
	existing, err := s.tasks.GetByID(t.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if !canManage(actor, existing) {
		return nil, ErrForbidden
	}
	t.LastResetDate = existing.LastResetDate
	if t.IsDaily && !existing.IsDaily {
		t.LastResetDate = s.clock.Today()
	}
	updated, err := s.tasks.Update(t)
	if err != nil {
		return nil, err
	}
	s.broadcast(websocket.EntityTask, "updated", t.ID, nil)
	return updated, nil
}

// Delete removes a task. Its creator, its assignee or an admin may do so.
func (s *Service) Delete(ctx context.Context, actor Actor, id int64) error {
	existing, err := s.tasks.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	isCreator := existing.CreatedBy != nil && *existing.CreatedBy == actor.MemberID
	if !canManage(actor, existing) && !isCreator {
		return ErrForbidden
	}
	if err := s.tasks.Delete(id); err != nil {
		return err
	}
	s.broadcast(websocket.EntityTask, "deleted", id, nil)
	return nil
}

func (s *Service) ToggleReminder(ctx context.Context, actor Actor, id int64) (*model.Task, error) {
	existing, err := s.tasks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if !canManage(actor, existing) {
		return nil, ErrForbidden
	}
	t, err := s.tasks.ToggleReminder(id)
	if err != nil {
		return nil, err
	}
	s.broadcast(websocket.EntityTask, "updated", id, nil)
	return t, nil
}

func (s *Service) List(ctx context.Context) ([]model.TaskWithAssignee, error) {
	return s.tasks.ListWithAssignee()
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Task, error) {
	return s.tasks.GetByID(id)
}
