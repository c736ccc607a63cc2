package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/emiller/starjar/internal/auth"
	"github.com/emiller/starjar/internal/model"
	"github.com/emiller/starjar/internal/points"
	"github.com/emiller/starjar/internal/provision"
	"github.com/emiller/starjar/internal/store"
	"github.com/emiller/starjar/internal/websocket"
)

type ChildHandler struct {
	childStore  *store.ChildStore
	provisioner *provision.Provisioner
	workflow    *points.Workflow
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewChildHandler(cs *store.ChildStore, p *provision.Provisioner, wf *points.Workflow, hub *websocket.Hub, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{
		childStore:  cs,
		provisioner: p,
		workflow:    wf,
		hub:         hub,
		logger:      logger,
	}
}

type addChildRequest struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Gender  string   `json:"gender"`
	Age     int      `json:"age"`
	Hobbies []string `json:"hobbies"`
}

type addChildResponse struct {
	Child    *model.Child `json:"child"`
	Password string       `json:"password"`
}

// Add provisions a child account for the calling parent: a login, a child
// profile, and a roster entry, with a generated password returned once.
func (h *ChildHandler) Add(w http.ResponseWriter, r *http.Request) {
	parentID := auth.ProfileID(r.Context())

	var req addChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" {
		writeErr(w, http.StatusBadRequest, "name and email are required")
		return
	}

	result, err := h.provisioner.AddChild(parentID, provision.ChildDetails{
		Name:    req.Name,
		Email:   req.Email,
		Gender:  req.Gender,
		Age:     req.Age,
		Hobbies: req.Hobbies,
	})
	if errors.Is(err, provision.ErrEmailTaken) {
		writeErr(w, http.StatusConflict, "email already in use")
		return
	}
	if err != nil {
		h.logger.Error("failed to provision child", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to add child")
		return
	}

	h.hub.Broadcast(parentID, websocket.NewMessage("child", "created", result.Child.ID, nil))
	writeJSON(w, http.StatusCreated, addChildResponse{Child: result.Child, Password: result.Password})
}

// List returns the calling parent's roster.
func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	children, err := h.childStore.ListByParent(auth.ProfileID(r.Context()))
	if err != nil {
		h.logger.Error("failed to list children", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to list children")
		return
	}
	writeJSON(w, http.StatusOK, children)
}

// Remove deletes a child's roster entry, profile, login, and sessions.
func (h *ChildHandler) Remove(w http.ResponseWriter, r *http.Request) {
	parentID := auth.ProfileID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid child id")
		return
	}

	if err := h.provisioner.RemoveChild(parentID, id); err != nil {
		if errors.Is(err, provision.ErrChildNotFound) {
			writeErr(w, http.StatusNotFound, "child not found")
			return
		}
		h.logger.Error("failed to remove child", "child_id", id, "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to remove child")
		return
	}

	h.hub.Broadcast(parentID, websocket.NewMessage("child", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// AckPassword clears the stored initial password once the parent has handed
// it to the child.
func (h *ChildHandler) AckPassword(w http.ResponseWriter, r *http.Request) {
	parentID := auth.ProfileID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid child id")
		return
	}

	child, err := h.childStore.GetByID(id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load child")
		return
	}
	if child == nil || child.ParentID != parentID {
		writeErr(w, http.StatusNotFound, "child not found")
		return
	}

	if err := h.childStore.ClearInitialPassword(id); err != nil {
		h.logger.Error("failed to clear initial password", "child_id", id, "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to update child")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Audit recomputes a child's balance from the task ledger and redemption
// history and reports whether the stored profile and roster values agree.
func (h *ChildHandler) Audit(w http.ResponseWriter, r *http.Request) {
	parentID := auth.ProfileID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid child id")
		return
	}

	child, err := h.childStore.GetByID(id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load child")
		return
	}
	if child == nil || child.ParentID != parentID {
		writeErr(w, http.StatusNotFound, "child not found")
		return
	}

	audit, err := h.workflow.AuditChild(r.Context(), child.ProfileID)
	if err != nil {
		h.logger.Error("failed to audit child", "child_id", id, "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to audit child")
		return
	}
	writeJSON(w, http.StatusOK, audit)
}
