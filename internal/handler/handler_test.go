package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emiller/starjar/internal/auth"
	"github.com/emiller/starjar/internal/database"
	"github.com/emiller/starjar/internal/model"
	"github.com/emiller/starjar/internal/points"
	"github.com/emiller/starjar/internal/provision"
	"github.com/emiller/starjar/internal/store"
	"github.com/emiller/starjar/internal/websocket"
)

// env wires handlers over an in-memory database with routes registered the
// way the server registers them, minus the auth middleware: tests attach
// auth.Context directly per request.
type env struct {
	db     *sql.DB
	mux    *http.ServeMux
	parent *model.Profile
	child  *model.Profile
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	hub := websocket.NewHub(logger)

	identityStore := store.NewIdentityStore(db)
	profileStore := store.NewProfileStore(db)
	childStore := store.NewChildStore(db)
	taskStore := store.NewTaskStore(db)
	rewardStore := store.NewRewardStore(db)
	sessionStore := store.NewSessionStore(db)

	workflow := points.NewWorkflow(db, logger)
	provisioner := provision.New(identityStore, profileStore, childStore, sessionStore, logger)

	taskH := NewTaskHandler(taskStore, childStore, workflow, hub, logger)
	rewardH := NewRewardHandler(rewardStore, workflow, hub, logger)
	childH := NewChildHandler(childStore, provisioner, workflow, hub, logger)
	profileH := NewProfileHandler(profileStore, identityStore, logger)
	announceH := NewAnnouncementHandler(store.NewAnnouncementStore(db), hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tasks", taskH.Create)
	mux.HandleFunc("GET /api/tasks", taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", taskH.Get)
	mux.HandleFunc("DELETE /api/tasks/{id}", taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/submit", taskH.Submit)
	mux.HandleFunc("POST /api/tasks/{id}/verify", taskH.Verify)
	mux.HandleFunc("POST /api/rewards", rewardH.Create)
	mux.HandleFunc("GET /api/rewards", rewardH.List)
	mux.HandleFunc("POST /api/rewards/{id}/redeem", rewardH.Redeem)
	mux.HandleFunc("GET /api/redemptions", rewardH.Redemptions)
	mux.HandleFunc("POST /api/children", childH.Add)
	mux.HandleFunc("GET /api/children", childH.List)
	mux.HandleFunc("GET /api/children/{id}/audit", childH.Audit)
	mux.HandleFunc("GET /api/profile", profileH.Get)
	mux.HandleFunc("GET /api/announcement", announceH.Get)
	mux.HandleFunc("PUT /api/announcement", announceH.Set)

	e := &env{db: db, mux: mux}

	identity, err := identityStore.Create("mom@example.com", "hash")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	e.parent, err = profileStore.Create(identity.ID, model.RoleParent, "Parent", "", nil, "", nil)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}

	kidIdentity, err := identityStore.Create("kid@example.com", "hash")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	e.child, err = profileStore.Create(kidIdentity.ID, model.RoleChild, "Kid", "", nil, "", &e.parent.ID)
	if err != nil {
		t.Fatalf("create child profile: %v", err)
	}
	if _, err := childStore.Create(e.parent.ID, e.child.ID, "Kid", "kid@example.com", nil, ""); err != nil {
		t.Fatalf("create roster entry: %v", err)
	}
	return e
}

func (e *env) asParent() auth.Context {
	return auth.Context{ProfileID: e.parent.ID, Role: "parent", ParentID: e.parent.ID}
}

func (e *env) asChild() auth.Context {
	return auth.Context{ProfileID: e.child.ID, Role: "child", ParentID: e.parent.ID}
}

func (e *env) do(t *testing.T, ac auth.Context, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req = req.WithContext(auth.WithContext(req.Context(), ac))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}
