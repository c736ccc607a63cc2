package points

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emiller/starjar/internal/model"
)

// Audit is a consistency report for one child: the stored balances against
// the balance recomputed from verified tasks minus redemptions.
type Audit struct {
	ChildID        int64 `json:"child_id"`
	ProfilePoints  int   `json:"profile_points"`
	MirrorPoints   int   `json:"mirror_points"`
	EarnedPoints   int   `json:"earned_points"`
	RedeemedPoints int   `json:"redeemed_points"`
	Consistent     bool  `json:"consistent"`
}

// AuditChild recomputes a child's balance from history and compares it to the
// stored profile and roster mirror values.
func (w *Workflow) AuditChild(ctx context.Context, childID int64) (*Audit, error) {
	a := Audit{ChildID: childID}

	err := w.db.QueryRowContext(ctx,
		`SELECT points FROM profiles WHERE id = ? AND role = ?`,
		childID, model.RoleChild,
	).Scan(&a.ProfilePoints)
	if err == sql.ErrNoRows {
		return nil, ErrChildNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read profile points: %w", err)
	}

	err = w.db.QueryRowContext(ctx,
		`SELECT points FROM children WHERE profile_id = ?`, childID,
	).Scan(&a.MirrorPoints)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("roster mirror %d: %w", childID, ErrChildNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read mirror points: %w", err)
	}

	err = w.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(t.points), 0) FROM tasks t
		 JOIN task_assignees ta ON ta.task_id = t.id
		 WHERE ta.child_id = ? AND t.status = 'verified'`,
		childID,
	).Scan(&a.EarnedPoints)
	if err != nil {
		return nil, fmt.Errorf("sum earned points: %w", err)
	}

	err = w.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(point_cost), 0) FROM redemptions WHERE child_id = ?`,
		childID,
	).Scan(&a.RedeemedPoints)
	if err != nil {
		return nil, fmt.Errorf("sum redeemed points: %w", err)
	}

	expected := a.EarnedPoints - a.RedeemedPoints
	a.Consistent = a.ProfilePoints == expected && a.MirrorPoints == expected
	return &a, nil
}
