package domain

import (
	"context"
	"strings"
	"time"
)

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Chat modes. Any unrecognized mode normalizes to simple.
const (
	ModeSimple = "simple"
	ModeReport = "report"
)

// ChatMessage is one half of a turn: the user question or the assistant
// answer. Report file fields are set only on assistant rows in report mode.
type ChatMessage struct {
	ID             int64       `json:"-"`
	UserID         string      `json:"-"`
	SessionID      string      `json:"sessionId"`
	TurnID         string      `json:"turnId"`
	TraceID        string      `json:"traceId"`
	Mode           string      `json:"mode"`
	Role           MessageRole `json:"role"`
	Status         string      `json:"-"`
	Content        string      `json:"content"`
	ReportFileID   string      `json:"-"`
	ReportFileName string      `json:"-"`
	ReportFileType string      `json:"-"`
	ReportSize     *int64      `json:"-"`
	CreatedAt      time.Time   `json:"ts"`
}

// HasReport reports whether this assistant row carries a report artifact.
func (m *ChatMessage) HasReport() bool {
	return m.Role == RoleAssistant && m.ReportFileID != ""
}

// MessageRepository defines the interface for message storage.
// FindAssistantByTurn returns (nil, nil) when no row exists, which is what
// makes the finalize upsert idempotent.
type MessageRepository interface {
	Create(ctx context.Context, message *ChatMessage) error
	Update(ctx context.Context, message *ChatMessage) error
	FindAssistantByTurn(ctx context.Context, sessionID, turnID string) (*ChatMessage, error)
	ListBySession(ctx context.Context, sessionID string, page, pageSize int) ([]ChatMessage, int64, error)
	FindByReportFileID(ctx context.Context, sessionID, fileID string) (*ChatMessage, error)
	LatestReportAssistant(ctx context.Context, sessionID string) (*ChatMessage, error)
}

// NormalizeMode collapses the inbound mode tag: exactly "report" (case
// insensitive) keeps report semantics, everything else is simple.
func NormalizeMode(mode string) string {
	if strings.ToLower(strings.TrimSpace(mode)) == ModeReport {
		return ModeReport
	}
	return ModeSimple
}
