// Package points implements the points-consistency workflow: the
// multi-record mutations that move a child's canonical profile balance, the
// parent-owned roster mirror, the task ledger, and the redemption history
// together or not at all.
//
// Every operation runs in a single SQL transaction. Status transitions and
// balance deductions are compare-and-swap UPDATEs guarded by RowsAffected,
// so concurrent reviewers race safely: the first writer wins and the second
// gets ErrStateConflict with nothing changed.
package points

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emiller/starjar/internal/model"
	"github.com/emiller/starjar/internal/task"
)

// DefaultRejectFeedback is attached when a parent returns a task without
// writing any feedback.
const DefaultRejectFeedback = "Please review and try again."

// Decision is a reviewer's verdict on a completed task.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type Workflow struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflow(db *sql.DB, logger *slog.Logger) *Workflow {
	return &Workflow{db: db, logger: logger}
}

// Submit marks a pending task completed on behalf of childID, attaching
// completion notes. Points are not awarded here; that happens at
// verification.
func (w *Workflow) Submit(ctx context.Context, taskID, childID int64, notes string) (*model.Task, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	status, _, err := w.taskState(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}

	var assigned bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM task_assignees WHERE task_id = ? AND child_id = ?)`,
		taskID, childID,
	).Scan(&assigned)
	if err != nil {
		return nil, fmt.Errorf("check assignee: %w", err)
	}
	if !assigned {
		return nil, ErrNotAssignee
	}

	if status != task.StatusPending {
		return nil, ErrStateConflict
	}

	// Guard on status again in the write itself so a concurrent submit
	// cannot slip between the read and the update.
	result, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completion_notes = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		task.StatusCompleted, notes, taskID, task.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return nil, ErrStateConflict
	}

	t, err := w.loadTask(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	w.logger.Info("task submitted", "task_id", taskID, "child_id", childID)
	return t, nil
}

// Verify applies a reviewer decision to a completed task owned by parentID.
//
// Approve transitions the task to verified and credits every assignee's
// profile and roster mirror by the task's point value in the same
// transaction: one task write plus two writes per assignee, all or nothing.
// A missing profile or mirror for any assignee fails the entire operation.
//
// Reject returns the task to pending with feedback attached and touches no
// points, no matter how many times it is invoked.
func (w *Workflow) Verify(ctx context.Context, taskID, parentID int64, decision Decision, feedback string) (*model.Task, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	status, ownerID, err := w.taskState(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if ownerID != parentID {
		return nil, ErrNotOwner
	}
	if status != task.StatusCompleted {
		return nil, ErrStateConflict
	}

	switch decision {
	case DecisionApprove:
		if err := w.approve(ctx, tx, taskID, feedback); err != nil {
			return nil, err
		}
	case DecisionReject:
		if feedback == "" {
			feedback = DefaultRejectFeedback
		}
		if err := w.reject(ctx, tx, taskID, feedback); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}

	t, err := w.loadTask(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	w.logger.Info("task reviewed", "task_id", taskID, "decision", string(decision))
	return t, nil
}

func (w *Workflow) approve(ctx context.Context, tx *sql.Tx, taskID int64, feedback string) error {
	var pointValue int
	err := tx.QueryRowContext(ctx, `SELECT points FROM tasks WHERE id = ?`, taskID).Scan(&pointValue)
	if err != nil {
		return fmt.Errorf("read point value: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, feedback = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		task.StatusVerified, feedback, taskID, task.StatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return ErrStateConflict
	}

	assignees, err := taskAssignees(ctx, tx, taskID)
	if err != nil {
		return err
	}

	for _, childID := range assignees {
		if err := w.creditChild(ctx, tx, childID, pointValue); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workflow) reject(ctx context.Context, tx *sql.Tx, taskID int64, feedback string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, feedback = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		task.StatusPending, feedback, taskID, task.StatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("return to pending: %w", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return ErrStateConflict
	}
	return nil
}

// creditChild applies a relative increment to both the canonical profile
// balance and the roster mirror. Each write must hit exactly one row.
func (w *Workflow) creditChild(ctx context.Context, tx *sql.Tx, childID int64, delta int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE profiles SET points = points + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND role = ?`,
		delta, childID, model.RoleChild,
	)
	if err != nil {
		return fmt.Errorf("credit profile %d: %w", childID, err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return fmt.Errorf("profile %d: %w", childID, ErrChildNotFound)
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE children SET points = points + ? WHERE profile_id = ?`,
		delta, childID,
	)
	if err != nil {
		return fmt.Errorf("credit mirror %d: %w", childID, err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return fmt.Errorf("roster mirror %d: %w", childID, ErrChildNotFound)
	}
	return nil
}

// Redeem exchanges a child's points for a reward. The deduction from the
// profile, the deduction from the roster mirror, and the appended history
// record commit together or not at all.
//
// idempotencyKey is client-generated; replaying a key returns the original
// redemption with applied=false and deducts nothing.
func (w *Workflow) Redeem(ctx context.Context, rewardID, childID int64, idempotencyKey string) (rec *model.Redemption, applied bool, err error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if existing, err := w.redemptionByKey(ctx, tx, idempotencyKey); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	var (
		description  string
		cost         int
		rewardParent int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT description, point_cost, parent_id FROM rewards WHERE id = ?`,
		rewardID,
	).Scan(&description, &cost, &rewardParent)
	if err == sql.ErrNoRows {
		return nil, false, ErrRewardNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("read reward: %w", err)
	}

	var childParent sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT parent_id FROM profiles WHERE id = ? AND role = ?`,
		childID, model.RoleChild,
	).Scan(&childParent)
	if err == sql.ErrNoRows {
		return nil, false, ErrChildNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("read child profile: %w", err)
	}
	if !childParent.Valid || childParent.Int64 != rewardParent {
		// A child can only claim rewards defined by their own parent.
		return nil, false, ErrRewardNotFound
	}

	// Conditional deduction: fails cleanly when the balance is short, and
	// doubles as the guard against concurrent redemptions racing each other.
	result, err := tx.ExecContext(ctx,
		`UPDATE profiles SET points = points - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND points >= ?`,
		cost, childID, cost,
	)
	if err != nil {
		return nil, false, fmt.Errorf("deduct profile: %w", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return nil, false, ErrInsufficientPoints
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE children SET points = points - ? WHERE profile_id = ? AND points >= ?`,
		cost, childID, cost,
	)
	if err != nil {
		return nil, false, fmt.Errorf("deduct mirror: %w", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return nil, false, fmt.Errorf("roster mirror %d: %w", childID, ErrChildNotFound)
	}

	insert, err := tx.ExecContext(ctx,
		`INSERT INTO redemptions (reward_id, child_id, parent_id, description, point_cost, idempotency_key)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rewardID, childID, rewardParent, description, cost, idempotencyKey,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			// Lost an idempotency race; the other writer's record stands.
			tx.Rollback()
			return w.existingRedemption(ctx, idempotencyKey)
		}
		return nil, false, fmt.Errorf("insert redemption: %w", err)
	}
	id, err := insert.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}

	rec, err = w.loadRedemption(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	w.logger.Info("reward redeemed", "reward_id", rewardID, "child_id", childID, "cost", cost)
	return rec, true, nil
}

// --- helpers ---

func (w *Workflow) taskState(ctx context.Context, tx *sql.Tx, taskID int64) (task.Status, int64, error) {
	var status string
	var ownerID int64
	err := tx.QueryRowContext(ctx,
		`SELECT status, parent_id FROM tasks WHERE id = ?`, taskID,
	).Scan(&status, &ownerID)
	if err == sql.ErrNoRows {
		return "", 0, ErrTaskNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("read task: %w", err)
	}
	return task.Status(status), ownerID, nil
}

func taskAssignees(ctx context.Context, tx *sql.Tx, taskID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT child_id FROM task_assignees WHERE task_id = ? ORDER BY child_id`, taskID,
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

func (w *Workflow) loadTask(ctx context.Context, tx *sql.Tx, taskID int64) (*model.Task, error) {
	var t model.Task
	err := tx.QueryRowContext(ctx,
		`SELECT id, parent_id, description, points, status, completion_notes, feedback, created_at, updated_at
		 FROM tasks WHERE id = ?`, taskID,
	).Scan(
		&t.ID, &t.ParentID, &t.Description, &t.Points, &t.Status,
		&t.CompletionNotes, &t.Feedback, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}
	if t.AssigneeIDs, err = taskAssignees(ctx, tx, taskID); err != nil {
		return nil, err
	}
	return &t, nil
}

func (w *Workflow) redemptionByKey(ctx context.Context, tx *sql.Tx, key string) (*model.Redemption, error) {
	var r model.Redemption
	err := tx.QueryRowContext(ctx,
		`SELECT id, reward_id, child_id, parent_id, description, point_cost, idempotency_key, redeemed_at
		 FROM redemptions WHERE idempotency_key = ?`, key,
	).Scan(
		&r.ID, &r.RewardID, &r.ChildID, &r.ParentID,
		&r.Description, &r.PointCost, &r.IdempotencyKey, &r.RedeemedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return &r, nil
}

func (w *Workflow) loadRedemption(ctx context.Context, tx *sql.Tx, id int64) (*model.Redemption, error) {
	var r model.Redemption
	err := tx.QueryRowContext(ctx,
		`SELECT id, reward_id, child_id, parent_id, description, point_cost, idempotency_key, redeemed_at
		 FROM redemptions WHERE id = ?`, id,
	).Scan(
		&r.ID, &r.RewardID, &r.ChildID, &r.ParentID,
		&r.Description, &r.PointCost, &r.IdempotencyKey, &r.RedeemedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("reload redemption: %w", err)
	}
	return &r, nil
}

func (w *Workflow) existingRedemption(ctx context.Context, key string) (*model.Redemption, bool, error) {
	var r model.Redemption
	err := w.db.QueryRowContext(ctx,
		`SELECT id, reward_id, child_id, parent_id, description, point_cost, idempotency_key, redeemed_at
		 FROM redemptions WHERE idempotency_key = ?`, key,
	).Scan(
		&r.ID, &r.RewardID, &r.ChildID, &r.ParentID,
		&r.Description, &r.PointCost, &r.IdempotencyKey, &r.RedeemedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("lookup redemption after race: %w", err)
	}
	return &r, false, nil
}
