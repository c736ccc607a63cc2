package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/emiller/starjar/internal/auth"
	"github.com/emiller/starjar/internal/model"
	"github.com/emiller/starjar/internal/store"
	"github.com/emiller/starjar/internal/websocket"
)

type AnnouncementHandler struct {
	store  *store.AnnouncementStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewAnnouncementHandler(as *store.AnnouncementStore, hub *websocket.Hub, logger *slog.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{store: as, hub: hub, logger: logger}
}

type setAnnouncementRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Active  bool   `json:"active"`
}

type announcementResponse struct {
	Announcement *model.Announcement `json:"announcement"`
}

// Get returns the current announcement. Children only see it while it is
// active; parents always get the stored record so the management form can
// load an inactive draft.
func (h *AnnouncementHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Current()
	if err != nil {
		h.logger.Error("failed to load announcement", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to load announcement")
		return
	}
	if a != nil && !a.Active && !auth.IsParent(r.Context()) {
		a = nil
	}
	writeJSON(w, http.StatusOK, announcementResponse{Announcement: a})
}

// Set creates or replaces the current announcement and notifies every
// connected client.
func (h *AnnouncementHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setAnnouncementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if len(req.Title) < 3 || len(req.Title) > 100 {
		writeErr(w, http.StatusBadRequest, "title must be between 3 and 100 characters")
		return
	}
	if len(req.Content) < 10 || len(req.Content) > 1000 {
		writeErr(w, http.StatusBadRequest, "content must be between 10 and 1000 characters")
		return
	}

	a, err := h.store.Set(req.Title, req.Content, req.Active, auth.ProfileID(r.Context()))
	if err != nil {
		h.logger.Error("failed to set announcement", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to save announcement")
		return
	}

	h.hub.BroadcastAll(websocket.NewMessage("announcement", "updated", a.ID, map[string]any{
		"active": a.Active,
	}))
	writeJSON(w, http.StatusOK, announcementResponse{Announcement: a})
}
