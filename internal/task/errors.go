package task

import "errors"

var (
	ErrNotFound         = errors.New("task not found")
	ErrNoMember         = errors.New("finish onboarding before working on tasks")
	ErrForbidden        = errors.New("not allowed to change this task")
	ErrAlreadyCompleted = errors.New("task already completed")
	ErrNotCompleted     = errors.New("task is not completed")
	ErrUnassigned       = errors.New("task has no assignee")
	ErrStealOwnTask     = errors.New("cannot steal your own task")
	ErrStealConflict    = errors.New("task was taken by someone else")
	ErrEvidenceDisabled = errors.New("evidence uploads are not configured")
)
