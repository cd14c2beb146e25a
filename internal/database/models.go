package database

import "time"

type User struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username       string     `gorm:"uniqueIndex;not null;size:64" json:"username"` // normalized identity
	TokenEncrypted string     `json:"-"`                                            // Fernet-encrypted chat token
	PasswordHash   string     `json:"-"`                                            // set only for local admin accounts
	Role           string     `gorm:"not null;default:user" json:"role"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TerminalEvent is one audit record of a session lifecycle transition:
// created, replaced, revoked, reaped, exited, shutdown.
type TerminalEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID   string    `gorm:"size:36" json:"event_id"`
	Identity  string    `gorm:"index;not null;size:64" json:"identity"`
	Event     string    `gorm:"not null;size:32" json:"event"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
