package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/emiller/starjar/internal/auth"
	"github.com/emiller/starjar/internal/backup"
	"github.com/emiller/starjar/internal/handler"
	"github.com/emiller/starjar/internal/middleware"
	"github.com/emiller/starjar/internal/points"
	"github.com/emiller/starjar/internal/provision"
	"github.com/emiller/starjar/internal/store"
	ws "github.com/emiller/starjar/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	authH         *handler.AuthHandler
	profileH      *handler.ProfileHandler
	childH        *handler.ChildHandler
	taskH         *handler.TaskHandler
	rewardH       *handler.RewardHandler
	announceH     *handler.AnnouncementHandler
	backupH       *handler.BackupHandler
	sessionStore  *store.SessionStore
	profileStore  *store.ProfileStore
	signer        *auth.Signer
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, signer *auth.Signer, backupCfg backup.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	identityStore := store.NewIdentityStore(db)
	profileStore := store.NewProfileStore(db)
	childStore := store.NewChildStore(db)
	taskStore := store.NewTaskStore(db)
	rewardStore := store.NewRewardStore(db)
	sessionStore := store.NewSessionStore(db)
	announcementStore := store.NewAnnouncementStore(db)
	backupStore := store.NewBackupStore(db)

	workflow := points.NewWorkflow(db, logger.With("component", "points"))
	provisioner := provision.New(identityStore, profileStore, childStore, sessionStore, logger.With("component", "provision"))

	// Backup status changes are fanned out to every connected family; the
	// instance hosts a single family, so the scoping is informational.
	backupMgr := backup.NewManager(backupCfg, db, backupStore, func(st backup.Status) {
		hub.BroadcastAll(ws.NewMessage("backup", string(st.State), 0, map[string]any{
			"error": st.Error,
		}))
	}, logger.With("component", "backup"))

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(identityStore, profileStore, sessionStore, signer, logger.With("component", "auth")),
		profileH:      handler.NewProfileHandler(profileStore, identityStore, logger.With("component", "profile")),
		childH:        handler.NewChildHandler(childStore, provisioner, workflow, hub, logger.With("component", "child")),
		taskH:         handler.NewTaskHandler(taskStore, childStore, workflow, hub, logger.With("component", "task")),
		rewardH:       handler.NewRewardHandler(rewardStore, workflow, hub, logger.With("component", "reward")),
		announceH:     handler.NewAnnouncementHandler(announcementStore, hub, logger.With("component", "announcement")),
		backupH:       handler.NewBackupHandler(backupMgr, backupStore, logger.With("component", "backup_handler")),
		sessionStore:  sessionStore,
		profileStore:  profileStore,
		signer:        signer,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes behind RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.profileStore, s.signer)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	parent := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireParent(h)
	}
	child := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireChild(h)
	}

	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)

	// Profile
	mux.HandleFunc("GET /api/profile", s.profileH.Get)
	mux.HandleFunc("PUT /api/profile", s.profileH.Update)
	mux.HandleFunc("POST /api/profile/password", s.profileH.ChangePassword)

	// Roster (parent only)
	mux.Handle("POST /api/children", parent(s.rateLimitedHandler(s.childH.Add)))
	mux.Handle("GET /api/children", parent(s.childH.List))
	mux.Handle("DELETE /api/children/{id}", parent(s.childH.Remove))
	mux.Handle("POST /api/children/{id}/ack-password", parent(s.childH.AckPassword))
	mux.Handle("GET /api/children/{id}/audit", parent(s.childH.Audit))

	// Tasks
	mux.Handle("POST /api/tasks", parent(s.taskH.Create))
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.Handle("DELETE /api/tasks/{id}", parent(s.taskH.Delete))
	mux.Handle("POST /api/tasks/{id}/submit", child(s.taskH.Submit))
	mux.Handle("POST /api/tasks/{id}/verify", parent(s.taskH.Verify))

	// Rewards and redemptions
	mux.Handle("POST /api/rewards", parent(s.rewardH.Create))
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.Handle("DELETE /api/rewards/{id}", parent(s.rewardH.Delete))
	mux.Handle("POST /api/rewards/{id}/redeem", child(s.rewardH.Redeem))
	mux.HandleFunc("GET /api/redemptions", s.rewardH.Redemptions)

	// Announcement (everyone reads, parent writes)
	mux.HandleFunc("GET /api/announcement", s.announceH.Get)
	mux.Handle("PUT /api/announcement", parent(s.announceH.Set))

	// Backups (parent only)
	mux.Handle("POST /api/backups", parent(s.backupH.Run))
	mux.Handle("GET /api/backups", parent(s.backupH.List))
	mux.Handle("GET /api/backups/status", parent(s.backupH.Status))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
