package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/skychatorg/skychat-xterm/internal/auth"
	"github.com/skychatorg/skychat-xterm/internal/broker"
	"github.com/skychatorg/skychat-xterm/internal/database"
	"github.com/skychatorg/skychat-xterm/internal/middleware"
	"github.com/skychatorg/skychat-xterm/internal/runner"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Setting{}, &database.TerminalEvent{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		database.DB = prev
	})
}

func createTestUser(t *testing.T, username, role string) *database.User {
	t.Helper()
	user := &database.User{Username: username, Role: role}
	if err := database.CreateUser(user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

// setupEnv wires the package globals to test fakes and restores them after.
func setupEnv(t *testing.T) *runner.FakeRunner {
	t.Helper()
	setupTestDB(t)

	fr := &runner.FakeRunner{}
	runner.SetForTest(fr)
	t.Cleanup(runner.ResetForTest)

	prevBroker, prevStore, prevValidator := Broker, SessionStore, TokenValidator
	Broker = broker.NewRegistry(broker.Options{Runner: fr, DataDir: t.TempDir()})
	SessionStore = auth.NewSessionStore(0)
	TokenValidator = auth.StaticValidator{}
	t.Cleanup(func() {
		Broker.ShutdownAll()
		Broker, SessionStore, TokenValidator = prevBroker, prevStore, prevValidator
	})
	return fr
}

// newServer builds the real route tree. A non-nil user is injected into
// every request, standing in for a valid cookie session.
func newServer(t *testing.T, user *database.User) *httptest.Server {
	t.Helper()
	mux := chi.NewRouter()
	if user != nil {
		mux.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, middleware.WithUserForTest(r, user))
			})
		})
	}
	mux.Get("/health", HealthCheck)
	mux.Post("/api/auth/login", Login)
	mux.Post("/api/auth/logout", Logout)
	mux.Get("/api/auth/me", GetCurrentUser)
	mux.Get("/api/terminal", TerminalWS)
	mux.Get("/api/sessions", ListSessions)
	mux.Delete("/api/sessions/{identity}", RevokeSession)
	mux.Get("/api/events", GetTerminalEvents)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newRawServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}
