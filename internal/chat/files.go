package chat

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/rifthq/smartstats/internal/apperr"
	"github.com/rifthq/smartstats/internal/domain"
)

// Downloader abstracts the agent file endpoint.
type Downloader interface {
	Download(ctx context.Context, accessToken, fileID string) (io.ReadCloser, string, error)
}

// Files streams report artifacts from the agent to the client, after
// checking that the requested file belongs to a session the caller owns.
type Files struct {
	store    *Store
	messages domain.MessageRepository
	gateway  Downloader
}

// NewFiles creates the file download service.
func NewFiles(store *Store, messages domain.MessageRepository, gateway Downloader) *Files {
	return &Files{store: store, messages: messages, gateway: gateway}
}

// FileInfo describes the artifact being streamed.
type FileInfo struct {
	FileName    string
	ContentType string
}

// Download checks ownership, resolves the owning assistant row and proxies
// the file body from the agent. Rows persisted before the file id was known
// are back-filled on first download.
func (f *Files) Download(ctx context.Context, userID, accessToken, sessionID, fileID string) (io.ReadCloser, *FileInfo, error) {
	if fileID == "" {
		return nil, nil, apperr.New(apperr.CodeInvalidArgument, "fileId must not be empty")
	}
	if _, err := f.store.ResolveSession(ctx, userID, sessionID); err != nil {
		return nil, nil, err
	}

	msg, err := f.messages.FindByReportFileID(ctx, sessionID, fileID)
	if err != nil {
		return nil, nil, err
	}
	if msg == nil {
		// The meta event may have carried no file id when the row was
		// written; adopt the latest report row of the session instead.
		msg, err = f.messages.LatestReportAssistant(ctx, sessionID)
		if err != nil {
			return nil, nil, err
		}
		if msg == nil || msg.UserID != userID || msg.ReportFileID != "" {
			return nil, nil, apperr.New(apperr.CodeNotFound, "report file not found in session")
		}
		msg.ReportFileID = fileID
		if msg.ReportFileName == "" {
			msg.ReportFileName = fileID
		}
		if msg.ReportFileType == "" {
			msg.ReportFileType = "markdown"
		}
		if err := f.messages.Update(ctx, msg); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Str("file_id", fileID).
				Msg("failed to back-fill report file id")
		}
	}
	if msg.UserID != userID {
		return nil, nil, apperr.New(apperr.CodeNotFound, "report file not found in session")
	}

	body, contentType, err := f.gateway.Download(ctx, accessToken, fileID)
	if err != nil {
		return nil, nil, err
	}

	name := msg.ReportFileName
	if name == "" {
		name = fileID
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return body, &FileInfo{FileName: name, ContentType: contentType}, nil
}
