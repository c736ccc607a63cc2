package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/emiller/starjar/internal/auth"
	"github.com/emiller/starjar/internal/store"
)

type ProfileHandler struct {
	profileStore  *store.ProfileStore
	identityStore *store.IdentityStore
	logger        *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, is *store.IdentityStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profileStore: ps, identityStore: is, logger: logger}
}

// Get returns the caller's own profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileStore.GetByID(auth.ProfileID(r.Context()))
	if err != nil {
		h.logger.Error("failed to load profile", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if profile == nil {
		writeErr(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Age    *int   `json:"age"`
	Phone  string `json:"phone"`
}

// Update changes the caller's display attributes. Points are never writable
// through this endpoint; only the verification and redemption flows move
// them.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeErr(w, http.StatusBadRequest, "name is required")
		return
	}

	profile, err := h.profileStore.UpdateDisplay(auth.ProfileID(r.Context()), req.Name, req.Gender, req.Age, strings.TrimSpace(req.Phone))
	if err != nil {
		h.logger.Error("failed to update profile", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword verifies the current password before replacing it.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.NewPassword) < 8 {
		writeErr(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	profile, err := h.profileStore.GetByID(auth.ProfileID(r.Context()))
	if err != nil || profile == nil {
		writeErr(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	currentHash, err := h.identityStore.PasswordHash(profile.IdentityID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to verify password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(currentHash), []byte(req.CurrentPassword)) != nil {
		writeErr(w, http.StatusForbidden, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := h.identityStore.UpdatePassword(profile.IdentityID, string(hash)); err != nil {
		h.logger.Error("failed to update password", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
