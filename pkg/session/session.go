package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Key identifies one conversation session within a tenant. Exactly one of the
// identifiers is used, in priority order user > device > session.
type Key struct {
	TenantID  string
	UserID    string
	DeviceID  string
	SessionID string
}

// NewKey builds a session key, keeping only the highest-priority identifier.
func NewKey(tenantID, userID, deviceID, sessionID string) Key {
	k := Key{TenantID: strings.TrimSpace(tenantID)}
	switch {
	case strings.TrimSpace(userID) != "":
		k.UserID = strings.TrimSpace(userID)
	case strings.TrimSpace(deviceID) != "":
		k.DeviceID = strings.TrimSpace(deviceID)
	default:
		k.SessionID = strings.TrimSpace(sessionID)
	}
	return k
}

// String renders the key as "<tenant>/<kind>:<id>".
func (k Key) String() string {
	switch {
	case k.UserID != "":
		return k.TenantID + "/user:" + k.UserID
	case k.DeviceID != "":
		return k.TenantID + "/device:" + k.DeviceID
	default:
		return k.TenantID + "/session:" + k.SessionID
	}
}

// Valid reports whether the key carries a tenant and at least one identifier.
func (k Key) Valid() bool {
	return k.TenantID != "" && (k.UserID != "" || k.DeviceID != "" || k.SessionID != "")
}

// Turn is one message of a conversation. Immutable once appended.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Intent    string    `json:"intent,omitempty"`
	Language  string    `json:"language,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNotFound is returned by Get when the session has no history yet.
var ErrNotFound = errors.New("session not found")

// Store is the conversation persistence boundary. History is append-only per
// session; implementations only need single-append atomicity.
type Store interface {
	// Get returns the ordered turn history. ErrNotFound when the session has
	// never been written.
	Get(ctx context.Context, key Key) ([]Turn, error)
	// Append adds turns to the end of the session history, creating the
	// session when absent.
	Append(ctx context.Context, key Key, turns ...Turn) error
	// Count returns the number of stored turns, 0 when absent.
	Count(ctx context.Context, key Key) (int, error)
}
