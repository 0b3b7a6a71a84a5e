package chat

import (
	"context"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rifthq/smartstats/internal/apperr"
	"github.com/rifthq/smartstats/internal/domain"
)

func TestCleanAssistantContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text passes through",
			in:   "T1 won the final.",
			want: "T1 won the final.",
		},
		{
			name: "raw sse block is re-extracted",
			in:   "event: token\ndata: {\"delta\":\"Hello\"}\n\nevent: token\ndata: {\"delta\":\" world\"}\n\n",
			want: "Hello world",
		},
		{
			name: "non-json data segment is kept literally",
			in:   "data: plain fragment",
			want: "plain fragment",
		},
		{
			name: "unextractable block falls back to raw",
			in:   "data: {\"other\":1}",
			want: "data: {\"other\":1}",
		},
		{
			name: "empty input",
			in:   "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanAssistantContent(tt.in))
		})
	}
}

func TestHistory_ListSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid timestamp filter", func(t *testing.T) {
		h := NewHistory(new(MockSessionRepository), new(MockMessageRepository), nil)

		_, err := h.ListSessions(ctx, "u_1", domain.SessionListRequest{From: "yesterday"})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInvalidArgument, apperr.From(err).Code)
	})

	t.Run("filters are passed through and empty result is a page", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		sessions.On("List", ctx, mock.MatchedBy(func(f domain.SessionFilter) bool {
			return f.UserID == "u_1" && f.Status == "active" && f.From != nil && f.Page == 2 && f.PageSize == 10
		})).Return(nil, int64(0), nil)

		h := NewHistory(sessions, new(MockMessageRepository), nil)
		page, err := h.ListSessions(ctx, "u_1", domain.SessionListRequest{
			Status: "active", From: "2026-01-01T00:00:00Z", Page: 2, PageSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), page.Total)
		assert.NotNil(t, page.Items)
	})
}

func TestHistory_Messages(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	sessions := new(MockSessionRepository)
	sessions.On("Get", ctx, "s_1").Return(ownedSession("u_1"), nil)

	size := int64(1234)
	messages := new(MockMessageRepository)
	messages.On("ListBySession", ctx, "s_1", 1, 50).Return([]domain.ChatMessage{
		{
			UserID: "u_1", SessionID: "s_1", Role: domain.RoleUser, Mode: "report",
			Content: "make a report", CreatedAt: now,
		},
		{
			UserID: "u_1", SessionID: "s_1", Role: domain.RoleAssistant, Mode: "report",
			Content:      "Long analysis body",
			ReportFileID: "f-1", ReportFileName: "worlds.md", ReportFileType: "markdown", ReportSize: &size,
			CreatedAt: now,
		},
		{
			// A row written under another principal must never leak.
			UserID: "u_intruder", SessionID: "s_1", Role: domain.RoleUser, Content: "secret",
		},
	}, int64(3), nil)

	store := NewStore(sessions, messages)
	h := NewHistory(sessions, messages, store)

	page, err := h.Messages(ctx, "u_1", domain.HistoryRequest{SessionID: "s_1", Page: 1, PageSize: 50})
	require.NoError(t, err)

	items := page.Items.([]HistoryItem)
	require.Len(t, items, 2)

	assert.Equal(t, domain.RoleUser, items[0].Role)
	assert.Equal(t, "make a report", items[0].Content)

	report := items[1]
	assert.Equal(t, "Report generated; click to download.", report.Content)
	assert.Equal(t, "Long analysis body", report.Preview)
	require.NotNil(t, report.ReportMeta)
	assert.Equal(t, "f-1", report.ReportMeta.FileID)
	assert.Equal(t, "/api/v1/chat/files/f-1?sessionId=s_1", report.DownloadURL)
	require.NotNil(t, report.ReportMeta.Size)
	assert.Equal(t, size, *report.ReportMeta.Size)
}

func TestPreview_RuneBoundary(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "abcde", preview("abcdefgh", 5))

	// "가" is three bytes; a cut inside it must back up to the rune start.
	s := "ab가나다"
	got := preview(s, 4)
	assert.Equal(t, "ab", got)
	assert.True(t, utf8.ValidString(got))

	got = preview(s, 5)
	assert.Equal(t, "ab가", got)
	assert.True(t, utf8.ValidString(got))
}

func TestHistory_CreateSession(t *testing.T) {
	ctx := context.Background()

	sessions := new(MockSessionRepository)
	sessions.On("Create", ctx, mock.MatchedBy(func(s *domain.ChatSession) bool {
		return s.UserID == "u_1" && s.Title == "Worlds recap" && s.Status == domain.SessionActive && s.ID != ""
	})).Return(nil)

	h := NewHistory(sessions, new(MockMessageRepository), nil)
	session, err := h.CreateSession(ctx, "u_1", "Worlds recap")
	require.NoError(t, err)
	assert.Contains(t, session.ID, "s_")
	sessions.AssertExpectations(t)
}
