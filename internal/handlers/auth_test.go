package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/skychatorg/skychat-xterm/internal/auth"
	"github.com/skychatorg/skychat-xterm/internal/crypto"
	"github.com/skychatorg/skychat-xterm/internal/database"
)

// rejectingValidator refuses every credential pair.
type rejectingValidator struct{}

func (rejectingValidator) Validate(context.Context, string, string) (string, error) {
	return "", auth.ErrBadCredentials
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestLogin_NormalizesAndStoresToken(t *testing.T) {
	setupEnv(t)
	ts := newServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/auth/login", map[string]string{
		"username": "Alice Smith",
		"token":    "chat-token-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Username != "alice-smith" {
		t.Errorf("username = %q, want normalized %q", body.Username, "alice-smith")
	}
	if body.Role != "user" {
		t.Errorf("role = %q, want user", body.Role)
	}

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("no session cookie set")
	}

	// The stored token is encrypted, and decrypts back to the original.
	u, err := database.GetUserByUsername("alice-smith")
	if err != nil {
		t.Fatalf("user row missing: %v", err)
	}
	if u.TokenEncrypted == "chat-token-1" {
		t.Error("token stored in plaintext")
	}
	if pt, err := crypto.Decrypt(u.TokenEncrypted); err != nil || pt != "chat-token-1" {
		t.Errorf("Decrypt = %q, %v", pt, err)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	setupEnv(t)
	ts := newServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/auth/login", map[string]string{"username": "alice"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	setupEnv(t)
	TokenValidator = rejectingValidator{}
	ts := newServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/auth/login", map[string]string{
		"username": "alice",
		"token":    "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if _, err := database.GetUserByUsername("alice"); err == nil {
		t.Error("failed login must not create a user row")
	}
}

type unavailableValidator struct{}

func (unavailableValidator) Validate(context.Context, string, string) (string, error) {
	return "", errors.New("connection refused")
}

func TestLogin_ChatServiceDown(t *testing.T) {
	setupEnv(t)
	TokenValidator = unavailableValidator{}
	ts := newServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/auth/login", map[string]string{
		"username": "alice",
		"token":    "tok",
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestLogin_LocalAdminPassword(t *testing.T) {
	setupEnv(t)
	// Remote validation rejects everything, so only the local path can pass.
	TokenValidator = rejectingValidator{}

	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin := &database.User{Username: "admin", PasswordHash: hash, Role: "admin"}
	if err := database.CreateUser(admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	ts := newServer(t, nil)
	resp := postJSON(t, ts.URL+"/api/auth/login", map[string]string{
		"username": "admin",
		"token":    "s3cret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/auth/login", map[string]string{
		"username": "admin",
		"token":    "not-the-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", resp.StatusCode)
	}
}

func TestLogout_RevokesTerminal(t *testing.T) {
	setupEnv(t)
	user := createTestUser(t, "alice", "user")
	ts := newServer(t, user)

	if _, err := Broker.GetOrCreate(context.Background(), "alice", false); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	sessionID, err := SessionStore.Create(user.ID)
	if err != nil {
		t.Fatalf("store create: %v", err)
	}

	req, _ := http.NewRequest("POST", ts.URL+"/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: sessionID})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if Broker.Has("alice") {
		t.Error("terminal session should be revoked on logout")
	}
	if _, ok := SessionStore.Get(sessionID); ok {
		t.Error("login session should be deleted on logout")
	}
}

func TestGetCurrentUser_RequiresAuth(t *testing.T) {
	setupEnv(t)
	ts := newServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/auth/me")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
