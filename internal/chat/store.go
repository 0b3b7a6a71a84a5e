package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rifthq/smartstats/internal/agent"
	"github.com/rifthq/smartstats/internal/apperr"
	"github.com/rifthq/smartstats/internal/domain"
)

// Store persists conversation turns. All operations resolve and authorize
// the owning session first; assistant writes are idempotent upserts keyed
// by (session, turn, role).
type Store struct {
	sessions domain.SessionRepository
	messages domain.MessageRepository
}

// NewStore creates a turn store.
func NewStore(sessions domain.SessionRepository, messages domain.MessageRepository) *Store {
	return &Store{sessions: sessions, messages: messages}
}

// ResolveSession enforces ownership. Authenticated principals must own an
// existing session; anonymous principals auto-provision one on first
// access.
func (s *Store) ResolveSession(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if domain.IsAnonymous(userID) {
		if session != nil {
			return session, nil
		}
		log.Info().Str("session_id", sessionID).Str("user_id", userID).
			Msg("creating temporary session for anonymous user")

		now := time.Now()
		session = &domain.ChatSession{
			ID:        sessionID,
			UserID:    userID,
			Title:     "temporary",
			Status:    domain.SessionActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to create temporary session: %w", err)
		}
		return session, nil
	}

	if session == nil || session.UserID != userID {
		return nil, apperr.New(apperr.CodeNotFound, "session not found or not owned")
	}
	return session, nil
}

// AppendUserMessage writes the user half of a turn and bumps the session's
// last activity.
func (s *Store) AppendUserMessage(ctx context.Context, userID, sessionID, turnID, traceID, mode, content string) error {
	session, err := s.ResolveSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	msg := &domain.ChatMessage{
		UserID:    userID,
		SessionID: sessionID,
		TurnID:    turnID,
		TraceID:   traceID,
		Mode:      mode,
		Role:      domain.RoleUser,
		Status:    session.Status,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to create user message: %w", err)
	}

	return s.touch(ctx, sessionID)
}

// FinalizeAssistantMessage upserts the single assistant row of a turn. The
// last call's text wins; report metadata is only overwritten when the
// incoming fields are non-empty, so metadata that arrived out of band
// survives a later text-only finalize.
func (s *Store) FinalizeAssistantMessage(ctx context.Context, userID, sessionID, turnID, traceID, mode, content string, meta agent.FileMeta) error {
	session, err := s.ResolveSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	msg, err := s.messages.FindAssistantByTurn(ctx, sessionID, turnID)
	if err != nil {
		return fmt.Errorf("failed to look up assistant message: %w", err)
	}

	created := msg == nil
	if created {
		msg = &domain.ChatMessage{
			UserID:    userID,
			SessionID: sessionID,
			TurnID:    turnID,
			TraceID:   traceID,
			Mode:      mode,
			Role:      domain.RoleAssistant,
			Status:    session.Status,
			CreatedAt: time.Now(),
		}
	}

	msg.Content = content
	if meta.FileID != "" {
		applyReportMeta(msg, meta)
	}

	if created {
		err = s.messages.Create(ctx, msg)
	} else {
		err = s.messages.Update(ctx, msg)
	}
	if err != nil {
		return fmt.Errorf("failed to save assistant message: %w", err)
	}

	log.Info().
		Str("trace_id", traceID).
		Str("session_id", sessionID).
		Str("turn_id", turnID).
		Str("mode", mode).
		Bool("created", created).
		Int("answer_len", len(content)).
		Str("report_file_id", msg.ReportFileID).
		Msg("assistant message finalized")

	return s.touch(ctx, sessionID)
}

// UpsertReportMeta writes only the report metadata of a turn's assistant
// row, creating a placeholder row with empty content when the text has not
// been finalized yet. Metadata may legitimately arrive before, after, or
// completely decoupled from the text finalize.
func (s *Store) UpsertReportMeta(ctx context.Context, userID, sessionID, turnID, traceID, mode string, meta agent.FileMeta) error {
	if meta.FileID == "" {
		log.Warn().Str("trace_id", traceID).Str("session_id", sessionID).Str("turn_id", turnID).
			Msg("report meta upsert skipped: blank file id")
		return nil
	}

	session, err := s.ResolveSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	msg, err := s.messages.FindAssistantByTurn(ctx, sessionID, turnID)
	if err != nil {
		return fmt.Errorf("failed to look up assistant message: %w", err)
	}

	created := msg == nil
	if created {
		msg = &domain.ChatMessage{
			UserID:    userID,
			SessionID: sessionID,
			TurnID:    turnID,
			TraceID:   traceID,
			Mode:      mode,
			Role:      domain.RoleAssistant,
			Status:    session.Status,
			Content:   "",
			CreatedAt: time.Now(),
		}
	}

	applyReportMeta(msg, meta)

	if created {
		err = s.messages.Create(ctx, msg)
	} else {
		err = s.messages.Update(ctx, msg)
	}
	if err != nil {
		return fmt.Errorf("failed to save report meta: %w", err)
	}

	log.Info().
		Str("trace_id", traceID).
		Str("session_id", sessionID).
		Str("turn_id", turnID).
		Str("file_id", meta.FileID).
		Bool("created", created).
		Msg("report meta upserted")

	return s.touch(ctx, sessionID)
}

func (s *Store) touch(ctx context.Context, sessionID string) error {
	if err := s.sessions.Touch(ctx, sessionID, time.Now()); err != nil {
		return fmt.Errorf("failed to bump session activity: %w", err)
	}
	return nil
}

func applyReportMeta(msg *domain.ChatMessage, meta agent.FileMeta) {
	msg.ReportFileID = meta.FileID
	if meta.FileName != "" {
		msg.ReportFileName = meta.FileName
	} else {
		msg.ReportFileName = meta.FileID
	}
	if meta.FileType != "" {
		msg.ReportFileType = meta.FileType
	} else {
		msg.ReportFileType = "markdown"
	}
	msg.ReportSize = meta.Size
}
