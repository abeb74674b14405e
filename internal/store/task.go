package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorequest/internal/model"
)

type TaskStore struct {
	db querier
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{db: tx}
}

func scanTask(scanner interface{ Scan(...any) error }, extra ...any) (*model.Task, error) {
	var t model.Task
	var dueDate, endDate, completedAt sql.NullTime
	var assigneeID, createdBy sql.NullInt64
	var lastReset, evidence, thumb sql.NullString
	var completed, daily, penalty, stolen, reminder int

	dest := []any{
		&t.ID, &t.Title, &t.Description, &dueDate, &endDate, &t.Duration, &assigneeID,
		&completed, &daily, &lastReset, &t.Points, &t.MissionType, &penalty,
		&evidence, &thumb, &completedAt, &stolen, &reminder, &createdBy, &t.CreatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	t.DueDate = timePtr(dueDate)
	t.EndDate = timePtr(endDate)
	t.CompletedAt = timePtr(completedAt)
	t.AssigneeID = int64Ptr(assigneeID)
	t.CreatedBy = int64Ptr(createdBy)
	t.LastResetDate = lastReset.String
	t.EvidenceURL = evidence.String
	t.EvidenceThumbURL = thumb.String
	t.IsCompleted = completed != 0
	t.IsDaily = daily != 0
	t.PenaltyApplied = penalty != 0
	t.Stolen = stolen != 0
	t.ReminderActive = reminder != 0
	return &t, nil
}

const taskCols = `id, title, description, due_date, end_date, duration, assignee_id, is_completed, is_daily,
	last_reset_date, points, mission_type, penalty_applied, evidence_url, evidence_thumb_url, completed_at,
	stolen, reminder_active, created_by, created_at`

const taskJoinCols = `t.id, t.title, t.description, t.due_date, t.end_date, t.duration, t.assignee_id, t.is_completed,
	t.is_daily, t.last_reset_date, t.points, t.mission_type, t.penalty_applied, t.evidence_url,
	t.evidence_thumb_url, t.completed_at, t.stolen, t.reminder_active, t.created_by, t.created_at,
	COALESCE(m.name, ''), COALESCE(m.avatar_url, '')`

// Create inserts t. Zero points and an empty mission type take their
// defaults, and a missing end date falls back to the due date.
func (s *TaskStore) Create(t model.Task) (*model.Task, error) {
	if t.Points <= 0 {
		t.Points = model.DefaultTaskPoints
	}
	if t.MissionType == "" {
		t.MissionType = model.MissionMandatory
	}
	if t.EndDate == nil {
		t.EndDate = t.DueDate
	}

	result, err := s.db.Exec(
		`INSERT INTO tasks (title, description, due_date, end_date, duration, assignee_id, is_daily,
		 last_reset_date, points, mission_type, reminder_active, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, nullTime(t.DueDate), nullTime(t.EndDate), t.Duration, nullInt64(t.AssigneeID),
		boolToInt(t.IsDaily), nullString(t.LastResetDate), t.Points, t.MissionType,
		boolToInt(t.ReminderActive), nullInt64(t.CreatedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// List returns every task, raw, in id order.
func (s *TaskStore) List() ([]model.Task, error) {
	rows, err := s.db.Query(`SELECT ` + taskCols + ` FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ListWithAssignee returns tasks joined with assignee display fields,
// incomplete first and then by due date.
func (s *TaskStore) ListWithAssignee() ([]model.TaskWithAssignee, error) {
	rows, err := s.db.Query(
		`SELECT ` + taskJoinCols + ` FROM tasks t LEFT JOIN family_members m ON m.id = t.assignee_id
		 ORDER BY t.is_completed ASC, t.due_date IS NULL, t.due_date ASC, t.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks with assignee: %w", err)
	}
	defer rows.Close()

	var tasks []model.TaskWithAssignee
	for rows.Next() {
		var tw model.TaskWithAssignee
		t, err := scanTask(rows, &tw.AssigneeName, &tw.AssigneeAvatar)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tw.Task = *t
		tasks = append(tasks, tw)
	}
	return tasks, rows.Err()
}

// ListDueForReminder returns incomplete tasks with reminders on whose due
// date falls in [from, to).
func (s *TaskStore) ListDueForReminder(from, to time.Time) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks
		 WHERE reminder_active = 1 AND is_completed = 0 AND assignee_id IS NOT NULL
		   AND due_date >= ? AND due_date < ?
		 ORDER BY due_date ASC`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks due for reminder: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ListPendingDailyAssignees returns members with a daily task still
// incomplete.
func (s *TaskStore) ListPendingDailyAssignees() ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT assignee_id FROM tasks
		 WHERE is_daily = 1 AND is_completed = 0 AND assignee_id IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending daily assignees: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan assignee id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update rewrites the editable fields of a task, including its day stamp.
func (s *TaskStore) Update(t model.Task) (*model.Task, error) {
	if t.Points <= 0 {
		t.Points = model.DefaultTaskPoints
	}
	if t.MissionType == "" {
		t.MissionType = model.MissionMandatory
	}
	if t.EndDate == nil {
		t.EndDate = t.DueDate
	}
	_, err := s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, due_date = ?, end_date = ?, duration = ?,
		 assignee_id = ?, is_daily = ?, last_reset_date = ?, points = ?, mission_type = ?,
		 reminder_active = ?
		 WHERE id = ?`,
		t.Title, t.Description, nullTime(t.DueDate), nullTime(t.EndDate), t.Duration,
		nullInt64(t.AssigneeID), boolToInt(t.IsDaily), nullString(t.LastResetDate), t.Points,
		t.MissionType, boolToInt(t.ReminderActive), t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(t.ID)
}

func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// MarkCompleted flips an incomplete task to completed.
func (s *TaskStore) MarkCompleted(id int64, at time.Time) error {
	result, err := s.db.Exec(
		`UPDATE tasks SET is_completed = 1, completed_at = ? WHERE id = ? AND is_completed = 0`,
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark task completed: %w", err)
	}
	return requireOneRow(result)
}

// MarkIncomplete reverts a completed task and clears its evidence.
func (s *TaskStore) MarkIncomplete(id int64) error {
	result, err := s.db.Exec(
		`UPDATE tasks SET is_completed = 0, completed_at = NULL, evidence_url = NULL, evidence_thumb_url = NULL
		 WHERE id = ? AND is_completed = 1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark task incomplete: %w", err)
	}
	return requireOneRow(result)
}

// MarkPenalized flags a task as penalized. It reports false when another
// run already did.
func (s *TaskStore) MarkPenalized(id int64) (bool, error) {
	result, err := s.db.Exec(`UPDATE tasks SET penalty_applied = 1 WHERE id = ? AND penalty_applied = 0`, id)
	if err != nil {
		return false, fmt.Errorf("mark task penalized: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ResetDaily clears a daily task for a new day. It reports false when the
// task was already reset today.
func (s *TaskStore) ResetDaily(id int64, today string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE tasks SET is_completed = 0, completed_at = NULL, penalty_applied = 0, last_reset_date = ?,
		 evidence_url = NULL, evidence_thumb_url = NULL
		 WHERE id = ? AND is_daily = 1 AND last_reset_date IS NOT ?`,
		today, id, today,
	)
	if err != nil {
		return false, fmt.Errorf("reset daily task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Steal reassigns an unfinished task from prevAssignee (nil when unassigned)
// to thief. It fails with ErrNoRowsAffected when the task changed hands or
// was completed.
func (s *TaskStore) Steal(id, thief int64, prevAssignee *int64) error {
	result, err := s.db.Exec(
		`UPDATE tasks SET assignee_id = ?, stolen = 1 WHERE id = ? AND is_completed = 0 AND assignee_id IS ?`,
		thief, id, nullInt64(prevAssignee),
	)
	if err != nil {
		return fmt.Errorf("steal task: %w", err)
	}
	return requireOneRow(result)
}

func (s *TaskStore) SetEvidence(id int64, url, thumbURL string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET evidence_url = ?, evidence_thumb_url = ? WHERE id = ?`,
		nullString(url), nullString(thumbURL), id,
	)
	if err != nil {
		return fmt.Errorf("set task evidence: %w", err)
	}
	return nil
}

// ToggleReminder flips reminder_active and returns the updated task.
func (s *TaskStore) ToggleReminder(id int64) (*model.Task, error) {
	_, err := s.db.Exec(`UPDATE tasks SET reminder_active = 1 - reminder_active WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("toggle task reminder: %w", err)
	}
	return s.GetByID(id)
}
