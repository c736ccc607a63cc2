package store

import (
	"database/sql"
	"fmt"

	"github.com/emiller/starjar/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	err := scanner.Scan(
		&t.ID, &t.ParentID, &t.Description, &t.Points, &t.Status,
		&t.CompletionNotes, &t.Feedback, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const taskCols = `id, parent_id, description, points, status, completion_notes, feedback, created_at, updated_at`

// Create inserts a task and its assignee set atomically. The point value is
// fixed at creation; there is no update path for it.
func (s *TaskStore) Create(parentID int64, description string, points int, assigneeIDs []int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO tasks (parent_id, description, points) VALUES (?, ?, ?)`,
		parentID, description, points,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, childID := range assigneeIDs {
		if _, err := tx.Exec(
			`INSERT INTO task_assignees (task_id, child_id) VALUES (?, ?)`,
			id, childID,
		); err != nil {
			return nil, fmt.Errorf("insert assignee %d: %w", childID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
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
	if t.AssigneeIDs, err = s.assignees(id); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskStore) ListByParent(parentID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE parent_id = ? ORDER BY created_at DESC, id DESC`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return s.collect(rows)
}

func (s *TaskStore) ListByAssignee(childID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks t
		 JOIN task_assignees ta ON ta.task_id = t.id
		 WHERE ta.child_id = ? ORDER BY t.created_at DESC, t.id DESC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by assignee: %w", err)
	}
	return s.collect(rows)
}

func (s *TaskStore) collect(rows *sql.Rows) ([]model.Task, error) {
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tasks {
		ids, err := s.assignees(tasks[i].ID)
		if err != nil {
			return nil, err
		}
		tasks[i].AssigneeIDs = ids
	}
	return tasks, nil
}

func (s *TaskStore) assignees(taskID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT child_id FROM task_assignees WHERE task_id = ? ORDER BY child_id`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a task. Redemption and point history is unaffected; a
// verified task's awarded points stay awarded.
func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// SumVerifiedPoints returns the total point value of verified tasks assigned
// to the child. Used by integrity checks and tests, not the hot path.
func (s *TaskStore) SumVerifiedPoints(childID int64) (int, error) {
	var sum sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(t.points), 0) FROM tasks t
		 JOIN task_assignees ta ON ta.task_id = t.id
		 WHERE ta.child_id = ? AND t.status = 'verified'`,
		childID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum verified points: %w", err)
	}
	return int(sum.Int64), nil
}
