package handler

import (
	"log/slog"
	"net/http"

	"github.com/emiller/starjar/internal/backup"
	"github.com/emiller/starjar/internal/store"
)

type BackupHandler struct {
	manager     *backup.Manager
	backupStore *store.BackupStore
	logger      *slog.Logger
}

func NewBackupHandler(m *backup.Manager, bs *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, backupStore: bs, logger: logger}
}

// Run triggers an immediate snapshot.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeErr(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	record, err := h.manager.RunNow(r.Context(), "manual")
	if err != nil {
		h.logger.Error("manual backup failed", "error", err)
		writeErr(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// List returns snapshot history, newest first.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backupStore.List(50)
	if err != nil {
		h.logger.Error("failed to list backups", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

// Status reports the manager's current state.
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}
