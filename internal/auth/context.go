package auth

import "context"

type contextKey struct{}

// Context is the authenticated caller's session context, populated by the
// auth middleware at the start of each request and torn down with it. It
// replaces any notion of ambient global session state: workflow operations
// receive the caller's identity explicitly.
type Context struct {
	ProfileID int64
	Role      string
	ParentID  int64 // owning parent for child callers; own id for parents
}

func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(Context)
	return ac, ok
}

func ProfileID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.ProfileID
}

func IsParent(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == "parent"
}

func IsChild(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == "child"
}

// FamilyID returns the id that scopes a caller to their family: the parent's
// own profile id, or a child's owning parent id. Used to scope live-update
// feeds and queries.
func FamilyID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	if ac.Role == "parent" {
		return ac.ProfileID
	}
	return ac.ParentID
}
