package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrBadCredentials means the chat service rejected the username/token pair.
var ErrBadCredentials = errors.New("invalid username or token")

// Validator verifies a username/token pair and returns the username the chat
// service knows the caller as.
type Validator interface {
	Validate(ctx context.Context, username, token string) (string, error)
}

// SkyChatValidator checks credentials against the SkyChat API's token
// verification endpoint.
type SkyChatValidator struct {
	BaseURL string
	Client  *http.Client
}

func NewSkyChatValidator(baseURL string) *SkyChatValidator {
	return &SkyChatValidator{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *SkyChatValidator) Validate(ctx context.Context, username, token string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"token":    token,
	})
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", v.BaseURL+"/api/token/verify", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrBadCredentials
	default:
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("verify token: HTTP %d: %s", resp.StatusCode, string(b))
	}

	var result struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Username == "" {
		result.Username = username
	}
	return result.Username, nil
}

// StaticValidator accepts any non-empty credential pair. Development only.
type StaticValidator struct{}

func (StaticValidator) Validate(_ context.Context, username, token string) (string, error) {
	if username == "" || token == "" {
		return "", ErrBadCredentials
	}
	return username, nil
}
