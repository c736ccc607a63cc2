package points

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"

	"github.com/emiller/starjar/internal/database"
	"github.com/emiller/starjar/internal/model"
	"github.com/emiller/starjar/internal/store"
	"github.com/emiller/starjar/internal/task"
)

type fixture struct {
	db       *sql.DB
	workflow *Workflow
	parent   *model.Profile
	child    *model.Profile
	tasks    *store.TaskStore
	rewards  *store.RewardStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:       db,
		workflow: NewWorkflow(db, slog.Default()),
		tasks:    store.NewTaskStore(db),
		rewards:  store.NewRewardStore(db),
	}
	f.parent = f.addParent(t, "mom@example.com")
	f.child = f.addChild(t, f.parent.ID, "kid@example.com")
	return f
}

func (f *fixture) addParent(t *testing.T, email string) *model.Profile {
	t.Helper()
	identity, err := store.NewIdentityStore(f.db).Create(email, "hash")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	p, err := store.NewProfileStore(f.db).Create(identity.ID, model.RoleParent, "Parent", "", nil, "", nil)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	return p
}

// addChild creates the profile and the roster mirror.
func (f *fixture) addChild(t *testing.T, parentID int64, email string) *model.Profile {
	t.Helper()
	identity, err := store.NewIdentityStore(f.db).Create(email, "hash")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	p, err := store.NewProfileStore(f.db).Create(identity.ID, model.RoleChild, "Kid", "", nil, "", &parentID)
	if err != nil {
		t.Fatalf("create child profile: %v", err)
	}
	if _, err := store.NewChildStore(f.db).Create(parentID, p.ID, "Kid", email, nil, ""); err != nil {
		t.Fatalf("create roster entry: %v", err)
	}
	return p
}

func (f *fixture) newTask(t *testing.T, points int, assignees ...int64) *model.Task {
	t.Helper()
	tk, err := f.tasks.Create(f.parent.ID, "Clean room", points, assignees)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return tk
}

func (f *fixture) balances(t *testing.T, profileID int64) (profile, mirror int) {
	t.Helper()
	if err := f.db.QueryRow(`SELECT points FROM profiles WHERE id = ?`, profileID).Scan(&profile); err != nil {
		t.Fatalf("read profile points: %v", err)
	}
	if err := f.db.QueryRow(`SELECT points FROM children WHERE profile_id = ?`, profileID).Scan(&mirror); err != nil {
		t.Fatalf("read mirror points: %v", err)
	}
	return profile, mirror
}

func TestSubmitMarksCompleted(t *testing.T) {
	f := setup(t)
	tk := f.newTask(t, 10, f.child.ID)

	got, err := f.workflow.Submit(context.Background(), tk.ID, f.child.ID, "all done")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got.Status != string(task.StatusCompleted) {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.CompletionNotes != "all done" {
		t.Errorf("notes = %q, want %q", got.CompletionNotes, "all done")
	}

	// Submission alone never awards points.
	profile, mirror := f.balances(t, f.child.ID)
	if profile != 0 || mirror != 0 {
		t.Errorf("balances = %d/%d, want 0/0", profile, mirror)
	}
}

func TestSubmitByNonAssignee(t *testing.T) {
	f := setup(t)
	other := f.addChild(t, f.parent.ID, "other@example.com")
	tk := f.newTask(t, 10, f.child.ID)

	_, err := f.workflow.Submit(context.Background(), tk.ID, other.ID, "")
	if !errors.Is(err, ErrNotAssignee) {
		t.Errorf("expected ErrNotAssignee, got %v", err)
	}
}

func TestSubmitTwiceConflicts(t *testing.T) {
	f := setup(t)
	tk := f.newTask(t, 10, f.child.ID)

	if _, err := f.workflow.Submit(context.Background(), tk.ID, f.child.ID, ""); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	_, err := f.workflow.Submit(context.Background(), tk.ID, f.child.ID, "")
	if !errors.Is(err, ErrStateConflict) {
		t.Errorf("expected ErrStateConflict, got %v", err)
	}
}

func TestSubmitMissingTask(t *testing.T) {
	f := setup(t)
	_, err := f.workflow.Submit(context.Background(), 999, f.child.ID, "")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestApproveCreditsProfileAndMirror(t *testing.T) {
	f := setup(t)
	tk := f.newTask(t, 25, f.child.ID)

	if _, err := f.workflow.Submit(context.Background(), tk.ID, f.child.ID, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	got, err := f.workflow.Verify(context.Background(), tk.ID, f.parent.ID, DecisionApprove, "nice work")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.Status != string(task.StatusVerified) {
		t.Errorf("status = %q, want verified", got.Status)
	}

	profile, mirror := f.balances(t, f.child.ID)
	if profile != 25 || mirror != 25 {
		t.Errorf("balances = %d/%d, want 25/25", profile, mirror)
	}
}

func TestApproveCreditsEveryAssignee(t *testing.T) {
	f := setup(t)
	second := f.addChild(t, f.parent.ID, "second@example.com")
	tk := f.newTask(t, 10, f.child.ID, second.ID)

	if _, err := f.workflow.Submit(context.Background(), tk.ID, f.child.ID, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := f.workflow.Verify(context.Background(), tk.ID, f.parent.ID, DecisionApprove, ""); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	for _, id := range []int64{f.child.ID, second.ID} {
		profile, mirror := f.balances(t, id)
		if profile != 10 || mirror != 10 {
			t.Errorf("child %d balances = %d/%d, want 10/10", id, profile, mirror)
		}
	}
}

func TestApproveMissingMirrorRollsBackEverything(t *testing.T) {
	f := setup(t)
	second := f.addChild(t, f.parent.ID, "second@example.com")
	tk := f.newTask(t, 10, f.child.ID, second.ID)

	if _, err := f.workflow.Submit(context.Background(), tk.ID, f.child.ID, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	// Break one assignee's roster mirror. Approval must then leave every
	// record untouched, the first assignee's credit included.
	if _, err := f.db.Exec(`DELETE FROM children WHERE profile_id = ?`, second.ID); err != nil {
		t.Fatalf("delete mirror: %v", err)
	}

	_, err := f.workflow.Verify(context.Background(), tk.ID, f.parent.ID, DecisionApprove, "")
	if !errors.Is(err, ErrChildNotFound) {
		t.Fatalf("expected ErrChildNotFound, got %v", err)
	}

	var status string
	if err := f.db.QueryRow(`SELECT status FROM tasks WHERE id = ?`, tk.ID).Scan(&status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}
	profile, mirror := f.balances(t, f.child.ID)
	if profile != 0 || mirror != 0 {
		t.Errorf("first assignee balances = %d/%d, want 0/0", profile, mirror)
	}
}

func TestRejectReturnsToPendingWithDefaultFeedback(t *testing.T) {
	f := setup(t)
	tk := f.newTask(t, 10, f.child.ID)

	if _, err := f.workflow.Submit(context.Background(), tk.ID, f.child.ID, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	got, err := f.workflow.Verify(context.Background(), tk.ID, f.parent.ID, DecisionReject, "")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.Status != string(task.StatusPending) {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if got.Feedback != DefaultRejectFeedback {
		t.Errorf("feedback = %q, want default", got.Feedback)
	}

	profile, mirror := f.balances(t, f.child.ID)
	if profile != 0 || mirror != 0 {
		t.Errorf("balances = %d/%d, want 0/0", profile, mirror)
	}
}

func TestRejectTwiceConflicts(t *testing.T) {
	f := setup(t)
	tk := f.newTask(t, 10, f.child.ID)

	if _, err := f.workflow.Submit(context.Background(), tk.ID, f.child.ID, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := f.workflow.Verify(context.Background(), tk.ID, f.parent.ID, DecisionReject, "redo it"); err != nil {
		t.Fatalf("first reject failed: %v", err)
	}
	// The task is already back to pending; the second reviewer loses.
	_, err := f.workflow.Verify(context.Background(), tk.ID, f.parent.ID, DecisionReject, "")
	if !errors.Is(err, ErrStateConflict) {
		t.Errorf("expected ErrStateConflict, got %v", err)
	}
}

func TestVerifyByOtherParent(t *testing.T) {
	f := setup(t)
	other := f.addParent(t, "stranger@example.com")
	tk := f.newTask(t, 10, f.child.ID)

	if _, err := f.workflow.Submit(context.Background(), tk.ID, f.child.ID, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	_, err := f.workflow.Verify(context.Background(), tk.ID, other.ID, DecisionApprove, "")
	if !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
}

func TestResubmitAfterReject(t *testing.T) {
	f := setup(t)
	tk := f.newTask(t, 10, f.child.ID)

	ctx := context.Background()
	if _, err := f.workflow.Submit(ctx, tk.ID, f.child.ID, "first try"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := f.workflow.Verify(ctx, tk.ID, f.parent.ID, DecisionReject, "missed a spot"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if _, err := f.workflow.Submit(ctx, tk.ID, f.child.ID, "second try"); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	got, err := f.workflow.Verify(ctx, tk.ID, f.parent.ID, DecisionApprove, "")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.Status != string(task.StatusVerified) {
		t.Errorf("status = %q, want verified", got.Status)
	}
	profile, _ := f.balances(t, f.child.ID)
	if profile != 10 {
		t.Errorf("points = %d, want 10", profile)
	}
}
