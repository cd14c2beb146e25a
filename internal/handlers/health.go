package handlers

import (
	"net/http"

	"github.com/skychatorg/skychat-xterm/internal/database"
	"github.com/skychatorg/skychat-xterm/internal/runner"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if database.DB != nil {
		sqlDB, err := database.DB.DB()
		if err == nil {
			if err := sqlDB.Ping(); err == nil {
				dbStatus = "connected"
			}
		}
	}

	runnerStatus := "unavailable"
	runnerBackend := "none"
	if rn := runner.Get(); rn != nil {
		runnerStatus = "ready"
		runnerBackend = rn.BackendName()
	}

	sessions := 0
	if Broker != nil {
		sessions = Broker.Stats().TotalSessions
	}

	status := "healthy"
	if dbStatus != "connected" {
		status = "unhealthy"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"database":       dbStatus,
		"runner":         runnerStatus,
		"runner_backend": runnerBackend,
		"sessions":       sessions,
	})
}
