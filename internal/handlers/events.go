package handlers

import (
	"net/http"
	"strconv"

	"github.com/skychatorg/skychat-xterm/internal/database"
)

// GetTerminalEvents returns the most recent session lifecycle events,
// newest first.
func GetTerminalEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := database.RecentTerminalEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
