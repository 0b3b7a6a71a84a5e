package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session lifecycle statuses. Sessions are only ever soft-transitioned.
const (
	SessionActive   = "active"
	SessionArchived = "archived"
	SessionDeleted  = "deleted"
)

// AnonymousPrefix marks principals synthesized for unauthenticated callers.
// Sessions owned by such principals are self-provisioning.
const AnonymousPrefix = "anonymous_"

// ChatSession represents a conversation thread owned by a single principal.
type ChatSession struct {
	ID        string    `json:"sessionId"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionFilter narrows session listing.
type SessionFilter struct {
	UserID   string
	Status   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// SessionRepository defines the interface for session storage.
type SessionRepository interface {
	Create(ctx context.Context, session *ChatSession) error
	Get(ctx context.Context, id string) (*ChatSession, error)
	List(ctx context.Context, filter SessionFilter) ([]ChatSession, int64, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

// IsAnonymous reports whether the principal was synthesized for an
// unauthenticated caller.
func IsAnonymous(userID string) bool {
	return strings.HasPrefix(userID, AnonymousPrefix)
}

// NewSessionID mints a session identifier.
func NewSessionID() string {
	return "s_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewTurnID mints a turn identifier grouping one user message and its
// at-most-one assistant response.
func NewTurnID() string {
	return "turn_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewTraceID mints a per-request correlation identifier.
func NewTraceID() string {
	return "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
