package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rifthq/smartstats/internal/api/middleware"
	"github.com/rifthq/smartstats/internal/api/response"
	"github.com/rifthq/smartstats/internal/chat"
	"github.com/rifthq/smartstats/internal/domain"
	"github.com/rs/zerolog/log"
)

// ChatHandler handles the conversation endpoints
type ChatHandler struct {
	relay   *chat.Relay
	history *chat.History
	files   *chat.Files
}

// NewChatHandler creates a new chat handler
func NewChatHandler(relay *chat.Relay, history *chat.History, files *chat.Files) *ChatHandler {
	return &ChatHandler{relay: relay, history: history, files: files}
}

// Stream runs a streaming conversation turn over SSE
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, "streaming unsupported")
		return
	}

	ctx := r.Context()
	userID, _ := middleware.GetUserID(ctx)
	traceID := middleware.GetTraceID(ctx)

	events, err := h.relay.Stream(ctx, userID, middleware.GetAccessToken(ctx), traceID, req)
	if err != nil {
		response.Fail(w, err, traceID)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		if ev.ID != "" {
			fmt.Fprintf(w, "id: %s\n", ev.ID)
		}
		if ev.Event != "" {
			fmt.Fprintf(w, "event: %s\n", ev.Event)
		}
		fmt.Fprintf(w, "data: %s\n\n", ev.Data)
		flusher.Flush()
	}
}

// Query runs a non-streaming conversation turn
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	userID, _ := middleware.GetUserID(ctx)
	traceID := middleware.GetTraceID(ctx)

	res, err := h.relay.Query(ctx, userID, middleware.GetAccessToken(ctx), traceID, req)
	if err != nil {
		response.Fail(w, err, traceID)
		return
	}

	response.OK(w, res)
}

// CreateSession creates a chat session for the current principal
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var input domain.SessionCreate
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
		if err := validate.Struct(input); err != nil {
			response.BadRequest(w, err.Error())
			return
		}
	}

	userID, _ := middleware.GetUserID(r.Context())
	session, err := h.history.CreateSession(r.Context(), userID, input.Title)
	if err != nil {
		response.Fail(w, err, middleware.GetTraceID(r.Context()))
		return
	}

	response.Created(w, session)
}

// ListSessions pages the current principal's sessions
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := domain.SessionListRequest{
		Status:   q.Get("status"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Page:     queryInt(q.Get("page"), 1),
		PageSize: queryInt(q.Get("pageSize"), 20),
	}

	userID, _ := middleware.GetUserID(r.Context())
	page, err := h.history.ListSessions(r.Context(), userID, req)
	if err != nil {
		response.Fail(w, err, middleware.GetTraceID(r.Context()))
		return
	}

	response.OK(w, page)
}

// History replays a session's messages
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := domain.HistoryRequest{
		SessionID: chi.URLParam(r, "sessionID"),
		Page:      queryInt(q.Get("page"), 1),
		PageSize:  queryInt(q.Get("pageSize"), 50),
	}

	userID, _ := middleware.GetUserID(r.Context())
	page, err := h.history.Messages(r.Context(), userID, req)
	if err != nil {
		response.Fail(w, err, middleware.GetTraceID(r.Context()))
		return
	}

	response.OK(w, page)
}

// DownloadFile streams a report artifact from the agent
func (h *ChatHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := chi.URLParam(r, "fileID")
	sessionID := r.URL.Query().Get("sessionId")

	userID, _ := middleware.GetUserID(ctx)
	body, info, err := h.files.Download(ctx, userID, middleware.GetAccessToken(ctx), sessionID, fileID)
	if err != nil {
		response.Fail(w, err, middleware.GetTraceID(ctx))
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.FileName+`"`)
	if _, err := io.Copy(w, body); err != nil {
		log.Warn().Err(err).Str("file_id", fileID).Msg("file download aborted")
	}
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
