package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skychatorg/skychat-xterm/internal/identity"
	"github.com/skychatorg/skychat-xterm/internal/middleware"
)

// ListSessions returns a snapshot of every live terminal session.
func ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Broker.Stats())
}

// RevokeSession force-terminates one identity's session. Users may revoke
// their own; admins may revoke anyone's. Any spelling of the identity
// resolves to the same session.
func RevokeSession(w http.ResponseWriter, r *http.Request) {
	id, err := identity.Normalize(chi.URLParam(r, "identity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Identity required")
		return
	}
	if !middleware.CanAccessIdentity(r, id) {
		writeError(w, http.StatusForbidden, "Not your session")
		return
	}
	if !Broker.Destroy(id) {
		writeError(w, http.StatusNotFound, "No session for identity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
