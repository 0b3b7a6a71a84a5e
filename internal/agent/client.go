package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rifthq/smartstats/internal/apperr"
)

const apiKeyHeader = "X-AI-API-Key"

// RawEvent is one wire-level SSE frame from the agent, or a terminal
// failure. The channel carrying RawEvents is closed after the last one.
type RawEvent struct {
	Event string
	Data  string
	ID    string
	Err   error
}

// Client talks to the AI agent service. It attaches the service credential
// on every call and forwards the caller's bearer token upstream.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates an agent client. Streaming responses have no overall
// deadline; per-call timeouts come from the request context.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// BuildPayload assembles the outbound agent payload. The agent's contract
// names the question field query, unlike the inbound message field.
func BuildPayload(sessionID, traceID, message, mode string, context map[string]any) map[string]any {
	if context == nil {
		context = map[string]any{}
	}
	return map[string]any{
		"sessionId": sessionID,
		"traceId":   traceID,
		"query":     message,
		"mode":      mode,
		"context":   context,
	}
}

// Stream opens the agent's SSE endpoint and relays raw frames on the
// returned channel. Failures never surface synchronously: an open or
// transport error arrives as a terminal RawEvent with Err set, so the
// caller can convert it into a user-visible event instead of dropping the
// downstream connection.
//
// The channel is unbuffered; the reader's pace back-pressures the upstream
// read, so slow clients never cause unbounded token buffering.
func (c *Client) Stream(ctx context.Context, accessToken string, payload map[string]any) <-chan RawEvent {
	out := make(chan RawEvent)

	go func() {
		defer close(out)

		body, err := json.Marshal(payload)
		if err != nil {
			send(ctx, out, RawEvent{Err: fmt.Errorf("failed to marshal agent payload: %w", err)})
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(body))
		if err != nil {
			send(ctx, out, RawEvent{Err: fmt.Errorf("failed to create agent request: %w", err)})
			return
		}
		c.setHeaders(req, accessToken)
		req.Header.Set("Accept", "text/event-stream")

		// Streams must not observe the non-streaming client timeout.
		streamClient := &http.Client{Transport: c.http.Transport}
		resp, err := streamClient.Do(req)
		if err != nil {
			send(ctx, out, RawEvent{Err: mapTransportError(err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			send(ctx, out, RawEvent{Err: mapStatusError(resp.StatusCode, resp.Body)})
			return
		}

		if err := readSSE(ctx, resp.Body, out); err != nil {
			send(ctx, out, RawEvent{Err: err})
		}
	}()

	return out
}

// Query performs the non-streaming agent call.
func (c *Client) Query(ctx context.Context, accessToken string, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create agent request: %w", err)
	}
	c.setHeaders(req, accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapStatusError(resp.StatusCode, resp.Body)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.New(apperr.CodeAIServiceError, "agent returned malformed response").
			WithDetails(map[string]any{"cause": err.Error()})
	}
	return result, nil
}

// Download proxies a generated report file from the agent. The caller owns
// the returned body.
func (c *Client) Download(ctx context.Context, accessToken, fileID string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+fileID, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create agent request: %w", err)
	}
	c.setHeaders(req, accessToken)
	req.Header.Set("Accept", "application/octet-stream")

	// File bodies can be large; no client-level deadline here either.
	streamClient := &http.Client{Transport: c.http.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, "", mapTransportError(err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, "", apperr.New(apperr.CodeNotFound, "file not found")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, "", mapStatusError(resp.StatusCode, resp.Body)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// send delivers ev on the unbuffered channel, or gives up when the caller's
// context ends. A reader that cancels mid-stream stops draining the channel,
// so every Stream-side send must carry this escape hatch or the goroutine
// blocks forever.
func send(ctx context.Context, out chan<- RawEvent, ev RawEvent) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

// readSSE parses the text/event-stream body frame by frame. A stream that
// ends without a done event is not an error; the relay finalizes anyway.
func readSSE(ctx context.Context, body io.Reader, out chan<- RawEvent) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var event, id string
	var data []string

	flush := func() bool {
		if event == "" && len(data) == 0 {
			return true
		}
		ev := RawEvent{Event: event, Data: strings.Join(data, "\n"), ID: id}
		event, id, data = "", "", nil
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !flush() {
				return ctx.Err()
			}
		case strings.HasPrefix(line, ":"):
			// comment / heartbeat
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		}
	}
	if !flush() {
		return ctx.Err()
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return mapTransportError(err)
	}
	return nil
}

// mapStatusError classifies a non-2xx agent response, keeping the original
// status and body for diagnostics.
func mapStatusError(status int, body io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	details := map[string]any{"status": status, "body": string(raw)}

	var code apperr.Code
	var message string
	switch {
	case status == http.StatusUnauthorized:
		code, message = apperr.CodeUnauthorized, "agent rejected credentials"
	case status == http.StatusForbidden:
		code, message = apperr.CodeForbidden, "agent denied access"
	case status == http.StatusNotFound:
		code, message = apperr.CodeAIEndpointNotFound, "agent endpoint not found"
	case status == http.StatusUnprocessableEntity:
		code, message = apperr.CodeAIInvalidArgument, "agent rejected request payload"
	case status >= http.StatusInternalServerError:
		code, message = apperr.CodeAIUpstreamError, "agent internal error"
	default:
		code, message = apperr.CodeAIServiceError, "agent request failed"
	}

	log.Warn().Int("status", status).Str("code", string(code)).Msg("agent call failed")
	return apperr.New(code, message).WithDetails(details)
}

// mapTransportError classifies low-level transport failures. Structured
// status is unavailable here, so a textual unauthorized match is a
// best-effort heuristic.
func mapTransportError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "unauthorized") || strings.Contains(msg, "401") {
		return apperr.New(apperr.CodeUnauthorized, "agent rejected credentials").
			WithDetails(map[string]any{"cause": msg})
	}
	return apperr.New(apperr.CodeAIServiceError, "agent call failed").
		WithDetails(map[string]any{"cause": msg})
}
