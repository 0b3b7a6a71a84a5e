package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rifthq/smartstats/internal/apperr"
	"github.com/rifthq/smartstats/internal/domain"
)

// History serves session management and paginated message replay.
type History struct {
	sessions domain.SessionRepository
	messages domain.MessageRepository
	store    *Store
}

// NewHistory creates the history service.
func NewHistory(sessions domain.SessionRepository, messages domain.MessageRepository, store *Store) *History {
	return &History{sessions: sessions, messages: messages, store: store}
}

// CreateSession creates a session bound to the current user.
func (h *History) CreateSession(ctx context.Context, userID, title string) (*domain.ChatSession, error) {
	now := time.Now()
	session := &domain.ChatSession{
		ID:        domain.NewSessionID(),
		UserID:    userID,
		Title:     title,
		Status:    domain.SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Page wraps a paginated result.
type Page struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Items    any   `json:"items"`
}

// ListSessions pages the user's sessions, newest activity first, with
// optional status and updated-at range filters.
func (h *History) ListSessions(ctx context.Context, userID string, req domain.SessionListRequest) (*Page, error) {
	filter := domain.SessionFilter{
		UserID:   userID,
		Status:   req.Status,
		Page:     max(req.Page, 1),
		PageSize: max(req.PageSize, 1),
	}

	var err error
	if filter.From, err = parseInstant(req.From); err != nil {
		return nil, err
	}
	if filter.To, err = parseInstant(req.To); err != nil {
		return nil, err
	}

	sessions, total, err := h.sessions.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []domain.ChatSession{}
	}
	return &Page{Total: total, Page: filter.Page, PageSize: filter.PageSize, Items: sessions}, nil
}

// HistoryItem is one message in a replayed conversation.
type HistoryItem struct {
	Mode        string             `json:"mode"`
	Role        domain.MessageRole `json:"role"`
	Content     string             `json:"content"`
	Preview     string             `json:"preview,omitempty"`
	ReportMeta  *domain.ReportMeta `json:"reportMeta,omitempty"`
	DownloadURL string             `json:"downloadUrl,omitempty"`
	Ts          *time.Time         `json:"ts,omitempty"`
}

// Messages replays a session's messages, oldest first. Assistant rows with
// a report artifact gain reportMeta and a download URL; rows that stored a
// raw SSE block (a legacy data quirk) have their token deltas re-extracted.
func (h *History) Messages(ctx context.Context, userID string, req domain.HistoryRequest) (*Page, error) {
	if _, err := h.store.ResolveSession(ctx, userID, req.SessionID); err != nil {
		return nil, err
	}

	page := max(req.Page, 1)
	pageSize := max(req.PageSize, 1)

	messages, total, err := h.messages.ListBySession(ctx, req.SessionID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	items := make([]HistoryItem, 0, len(messages))
	for _, m := range messages {
		// Defensive: never leak rows written by another principal into a
		// shared session id.
		if m.UserID != userID {
			continue
		}

		item := HistoryItem{Mode: m.Mode, Role: m.Role}
		if !m.CreatedAt.IsZero() {
			ts := m.CreatedAt
			item.Ts = &ts
		}

		cleaned := cleanAssistantContent(m.Content)
		if m.HasReport() {
			item.ReportMeta = &domain.ReportMeta{
				FileID:   m.ReportFileID,
				FileName: m.ReportFileName,
				FileType: m.ReportFileType,
				Size:     m.ReportSize,
			}
			item.DownloadURL = "/api/v1/chat/files/" + m.ReportFileID + "?sessionId=" + m.SessionID
			item.Content = "Report generated; click to download."
			item.Preview = preview(cleaned, 500)
		} else {
			item.Content = cleaned
		}
		items = append(items, item)
	}

	return &Page{Total: total, Page: page, PageSize: pageSize, Items: items}, nil
}

func parseInstant(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidArgument, "from/to must be ISO-8601 timestamps (e.g. 2026-01-15T00:00:00Z)")
	}
	return &t, nil
}

// preview truncates to maxLen bytes without splitting a UTF-8 rune.
func preview(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// cleanAssistantContent recovers readable text from rows that persisted a
// raw event:/data: block instead of concatenated deltas.
func cleanAssistantContent(raw string) string {
	r := strings.TrimSpace(raw)
	if r == "" {
		return ""
	}
	if !strings.Contains(r, "event:") && !strings.Contains(r, "data:") {
		return r
	}

	var out strings.Builder
	parts := strings.Split(r, "data:")
	for _, seg := range parts[1:] {
		seg = strings.TrimSpace(seg)
		if end := strings.Index(seg, "event:"); end >= 0 {
			seg = seg[:end]
		}
		if nl := strings.IndexByte(seg, '\n'); nl >= 0 {
			seg = seg[:nl]
		}
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(seg), &obj); err != nil {
			out.WriteString(seg)
			continue
		}
		if delta, ok := obj["delta"].(string); ok {
			out.WriteString(delta)
		}
	}

	cleaned := strings.TrimSpace(out.String())
	if cleaned == "" {
		return r
	}
	return cleaned
}
