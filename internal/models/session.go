package models

import "time"

// Session is one login session of a user. Only the sha256 hash of the opaque
// session number is stored; the raw value lives inside the refresh credential
// held by the client.
//
// ExpiresAt is nil for a session-scoped login (reclaimed by idleness) and set
// to an absolute instant for a "remember me" login (reclaimed by age).
type Session struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	SessionHash string     `json:"session_hash"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  time.Time  `json:"last_used_at"`
}

// SessionToken is one refresh-token row of a session. At most one row per
// live session has IsUsed == false; every earlier row is historical.
type SessionToken struct {
	ID        int64      `json:"id"`
	SessionID int64      `json:"session_id"`
	TokenHash string     `json:"token_hash"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsUsed    bool       `json:"is_used"`
}
