package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/skychatorg/skychat-xterm/internal/auth"
	"github.com/skychatorg/skychat-xterm/internal/crypto"
	"github.com/skychatorg/skychat-xterm/internal/database"
	"github.com/skychatorg/skychat-xterm/internal/identity"
	"github.com/skychatorg/skychat-xterm/internal/logutil"
	"github.com/skychatorg/skychat-xterm/internal/middleware"
)

// SessionStore and TokenValidator are set from main.go during init.
var (
	SessionStore   *auth.SessionStore
	TokenValidator auth.Validator
)

func setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionStore.TTL().Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// Login checks a SkyChat username/token pair against the chat service, then
// mints a broker session. The stored username is the normalized identity, so
// every later lookup and spawn agrees on one canonical form.
func Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Token    string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Username == "" || body.Token == "" {
		writeError(w, http.StatusBadRequest, "Username and token are required")
		return
	}

	// Local accounts (created with --create-admin) authenticate with their
	// password instead of a SkyChat token and skip the remote call.
	if localID, err := identity.Normalize(body.Username); err == nil {
		if u, err := database.GetUserByUsername(localID); err == nil &&
			u.PasswordHash != "" && auth.CheckPassword(body.Token, u.PasswordHash) {
			loginAs(w, r, u)
			return
		}
	}

	canonical, err := TokenValidator.Validate(r.Context(), body.Username, body.Token)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid username or token")
			return
		}
		log.Printf("[auth] skychat validation unavailable for %s: %v",
			logutil.SanitizeForLog(body.Username), err)
		writeError(w, http.StatusBadGateway, "Chat service unavailable")
		return
	}

	id, err := identity.Normalize(canonical)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Username cannot be used as an identity")
		return
	}

	encToken, err := crypto.Encrypt(body.Token)
	if err != nil {
		log.Printf("[auth] token encryption failed for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to store token")
		return
	}

	user, err := database.UpsertLogin(id, encToken)
	if err != nil {
		log.Printf("[auth] login upsert failed for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to record login")
		return
	}

	loginAs(w, r, user)
}

// loginAs mints a cookie session for an authenticated user.
func loginAs(w http.ResponseWriter, r *http.Request, user *database.User) {
	sessionID, err := SessionStore.Create(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	setSessionCookie(w, r, sessionID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}

// Logout drops the cookie session and revokes the user's terminal, so a
// signed-out user leaves no running process behind.
func Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.SessionCookie)
	if err == nil {
		if userID, ok := SessionStore.Get(cookie.Value); ok {
			if user, err := database.GetUserByID(userID); err == nil && Broker != nil {
				Broker.Destroy(user.Username)
			}
		}
		SessionStore.Delete(cookie.Value)
	}
	clearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}
