package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/emiller/starjar/internal/middleware"
	"github.com/emiller/starjar/internal/model"
	"github.com/emiller/starjar/internal/store"

	"github.com/emiller/starjar/internal/auth"
)

type AuthHandler struct {
	identityStore *store.IdentityStore
	profileStore  *store.ProfileStore
	sessionStore  *store.SessionStore
	signer        *auth.Signer
	logger        *slog.Logger
}

func NewAuthHandler(is *store.IdentityStore, ps *store.ProfileStore, ss *store.SessionStore, signer *auth.Signer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		identityStore: is,
		profileStore:  ps,
		sessionStore:  ss,
		signer:        signer,
		logger:        logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Age      *int   `json:"age"`
	Phone    string `json:"phone"`
}

type authResponse struct {
	Profile *model.Profile `json:"profile"`
	Token   string         `json:"token"`
}

// Register creates a parent account: an identity plus a parent profile, and
// signs the caller in immediately.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and name are required"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to hash password"})
		return
	}

	identity, err := h.identityStore.Create(req.Email, string(hash))
	if err == store.ErrEmailTaken {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already in use"})
		return
	}
	if err != nil {
		h.logger.Error("create identity", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to register"})
		return
	}

	profile, err := h.profileStore.Create(identity.ID, model.RoleParent, req.Name, req.Gender, req.Age, req.Phone, nil)
	if err != nil {
		h.logger.Error("create parent profile", "error", err)
		// Do not leave an identity without a profile behind.
		if derr := h.identityStore.Delete(identity.ID); derr != nil {
			h.logger.Error("cleanup identity after failed registration", "error", derr)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to register"})
		return
	}

	h.signIn(w, profile, http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Login authenticates an identity and starts a session. When a role is
// supplied (the parent and child apps have separate login screens), a
// mismatch is rejected like a bad credential.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	identity, err := h.identityStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to log in"})
		return
	}
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	hash, err := h.identityStore.PasswordHash(identity.ID)
	if err != nil {
		h.logger.Error("login hash", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to log in"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	profile, err := h.profileStore.GetByIdentityID(identity.ID)
	if err != nil || profile == nil {
		h.logger.Error("login profile", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	if req.Role != "" && profile.Role != req.Role {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	h.signIn(w, profile, http.StatusOK)
}

func (h *AuthHandler) signIn(w http.ResponseWriter, profile *model.Profile, status int) {
	sess, err := h.sessionStore.Create(profile.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to start session"})
		return
	}

	var parentID int64
	if profile.ParentID != nil {
		parentID = *profile.ParentID
	}
	token, err := h.signer.Sign(profile.ID, profile.Role, parentID)
	if err != nil {
		h.logger.Error("sign token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to start session"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, status, authResponse{Profile: profile, Token: token})
}

// Logout deletes the session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessionStore.DeleteByToken(cookie.Value); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// --- shared handler helpers ---

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
