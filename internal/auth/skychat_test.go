package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSkyChatValidator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/token/verify" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			Username string `json:"username"`
			Token    string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Token != "good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"username": "Alice"})
	}))
	defer srv.Close()

	v := NewSkyChatValidator(srv.URL)

	name, err := v.Validate(context.Background(), "alice", "good-token")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if name != "Alice" {
		t.Errorf("username = %q, want Alice", name)
	}

	_, err = v.Validate(context.Background(), "alice", "bad-token")
	if !errors.Is(err, ErrBadCredentials) {
		t.Errorf("err = %v, want ErrBadCredentials", err)
	}
}

func TestSkyChatValidatorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewSkyChatValidator(srv.URL)
	_, err := v.Validate(context.Background(), "alice", "tok")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrBadCredentials) {
		t.Error("server error must not read as bad credentials")
	}
}

func TestStaticValidator(t *testing.T) {
	v := StaticValidator{}
	if name, err := v.Validate(context.Background(), "bob", "anything"); err != nil || name != "bob" {
		t.Errorf("Validate = %q, %v", name, err)
	}
	if _, err := v.Validate(context.Background(), "", "x"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("empty username: err = %v", err)
	}
	if _, err := v.Validate(context.Background(), "bob", ""); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("empty token: err = %v", err)
	}
}
