package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/emiller/starjar/internal/auth"
	"github.com/emiller/starjar/internal/store"
)

// SessionCookieName is the browser session cookie set at login.
const SessionCookieName = "starjar_session"

// RequireAuth authenticates the request from either the session cookie or an
// Authorization bearer token, and populates auth.Context for handlers.
func RequireAuth(sessions *store.SessionStore, profiles *store.ProfileStore, signer *auth.Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ac, ok := fromBearer(r, signer); ok {
				next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), ac)))
				return
			}

			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			profile, err := profiles.GetByID(sess.ProfileID)
			if err != nil || profile == nil {
				unauthorized(w)
				return
			}

			ac := auth.Context{
				ProfileID: profile.ID,
				Role:      profile.Role,
			}
			if profile.ParentID != nil {
				ac.ParentID = *profile.ParentID
			} else {
				ac.ParentID = profile.ID
			}

			next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), ac)))
		})
	}
}

func fromBearer(r *http.Request, signer *auth.Signer) (auth.Context, bool) {
	if signer == nil {
		return auth.Context{}, false
	}
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return auth.Context{}, false
	}
	claims, err := signer.Parse(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
	if err != nil {
		return auth.Context{}, false
	}
	ac := auth.Context{ProfileID: claims.ProfileID, Role: claims.Role, ParentID: claims.ParentID}
	if ac.ParentID == 0 {
		ac.ParentID = ac.ProfileID
	}
	return ac, true
}

// RequireParent restricts a route to parent callers.
func RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsParent(r.Context()) {
			writeError(w, http.StatusForbidden, "parent account required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireChild restricts a route to child callers.
func RequireChild(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsChild(r.Context()) {
			writeError(w, http.StatusForbidden, "child account required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "authentication required")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
