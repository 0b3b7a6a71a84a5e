package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rifthq/smartstats/internal/domain"
)

const messageColumns = `id, user_id, session_id, turn_id, trace_id, mode, role, status, content,
	report_file_id, report_file_name, report_file_type, report_size, created_at`

// MessageRepository implements domain.MessageRepository
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (user_id, session_id, turn_id, trace_id, mode, role, status, content,
			report_file_id, report_file_name, report_file_type, report_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		m.UserID,
		m.SessionID,
		m.TurnID,
		m.TraceID,
		m.Mode,
		m.Role,
		m.Status,
		m.Content,
		nullString(m.ReportFileID),
		nullString(m.ReportFileName),
		nullString(m.ReportFileType),
		m.ReportSize,
		m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *MessageRepository) Update(ctx context.Context, m *domain.ChatMessage) error {
	query := `
		UPDATE chat_messages
		SET content = $1, report_file_id = $2, report_file_name = $3, report_file_type = $4, report_size = $5
		WHERE id = $6
	`
	_, err := r.pool.Exec(ctx, query,
		m.Content,
		nullString(m.ReportFileID),
		nullString(m.ReportFileName),
		nullString(m.ReportFileType),
		m.ReportSize,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

// FindAssistantByTurn locates the single assistant row of a turn. Returns
// (nil, nil) when no row exists yet.
func (r *MessageRepository) FindAssistantByTurn(ctx context.Context, sessionID, turnID string) (*domain.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM chat_messages
		WHERE session_id = $1 AND turn_id = $2 AND role = 'assistant'
		ORDER BY created_at ASC
		LIMIT 1
	`, messageColumns)

	m, err := scanMessage(r.pool.QueryRow(ctx, query, sessionID, turnID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find assistant message: %w", err)
	}
	return m, nil
}

// ListBySession pages a session's messages in chronological order.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string, page, pageSize int) ([]domain.ChatMessage, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_messages WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, messageColumns)

	rows, err := r.pool.Query(ctx, query, sessionID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, total, nil
}

// FindByReportFileID locates the assistant row that owns a report file.
// Session id may be empty for a global lookup.
func (r *MessageRepository) FindByReportFileID(ctx context.Context, sessionID, fileID string) (*domain.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM chat_messages
		WHERE report_file_id = $1
	`, messageColumns)
	args := []any{fileID}
	if sessionID != "" {
		query += " AND session_id = $2"
		args = append(args, sessionID)
	}
	query += " ORDER BY created_at DESC LIMIT 1"

	m, err := scanMessage(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message by report file: %w", err)
	}
	return m, nil
}

// LatestReportAssistant returns the most recent report-mode assistant row
// of a session, used to back-fill a missing file id on download.
func (r *MessageRepository) LatestReportAssistant(ctx context.Context, sessionID string) (*domain.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM chat_messages
		WHERE session_id = $1 AND role = 'assistant' AND mode = 'report'
		ORDER BY created_at DESC
		LIMIT 1
	`, messageColumns)

	m, err := scanMessage(r.pool.QueryRow(ctx, query, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest report message: %w", err)
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	var roleStr string
	var fileID, fileName, fileType sql.NullString

	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.SessionID,
		&m.TurnID,
		&m.TraceID,
		&m.Mode,
		&roleStr,
		&m.Status,
		&m.Content,
		&fileID,
		&fileName,
		&fileType,
		&m.ReportSize,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Role = domain.MessageRole(roleStr)
	m.ReportFileID = fileID.String
	m.ReportFileName = fileName.String
	m.ReportFileType = fileType.String
	return &m, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
