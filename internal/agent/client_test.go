package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rifthq/smartstats/internal/apperr"
)

func TestClient_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "service-key", r.Header.Get(apiKeyHeader))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": heartbeat\n\n")
		fmt.Fprint(w, "event: token\ndata: {\"delta\":\"Hi\"}\n\n")
		fmt.Fprint(w, "id: 7\nevent: token\ndata: {\"delta\":\" there\"}\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"ok\":true}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "service-key", 5*time.Second)

	var got []RawEvent
	for ev := range c.Stream(context.Background(), "user-token", BuildPayload("s_1", "t_1", "hello", "simple", nil)) {
		require.NoError(t, ev.Err)
		got = append(got, ev)
	}

	require.Len(t, got, 3)
	assert.Equal(t, RawEvent{Event: "token", Data: `{"delta":"Hi"}`}, got[0])
	assert.Equal(t, RawEvent{Event: "token", Data: `{"delta":" there"}`, ID: "7"}, got[1])
	assert.Equal(t, "done", got[2].Event)
}

func TestClient_Stream_ClientCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: token\ndata: {\"delta\":\"Hi\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	ch := c.Stream(ctx, "", BuildPayload("s_1", "t_1", "hello", "simple", nil))
	ev := <-ch
	require.NoError(t, ev.Err)

	// A cancelled reader stops draining; the goroutine must still exit.
	cancel()
	time.Sleep(200 * time.Millisecond)

	select {
	case ev, ok := <-ch:
		require.False(t, ok, "expected closed stream channel, got %+v", ev)
	case <-time.After(2 * time.Second):
		t.Fatal("stream goroutine still blocked after cancellation")
	}
}

func TestClient_Stream_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		code   apperr.Code
	}{
		{http.StatusUnauthorized, apperr.CodeUnauthorized},
		{http.StatusForbidden, apperr.CodeForbidden},
		{http.StatusNotFound, apperr.CodeAIEndpointNotFound},
		{http.StatusUnprocessableEntity, apperr.CodeAIInvalidArgument},
		{http.StatusInternalServerError, apperr.CodeAIUpstreamError},
		{http.StatusBadRequest, apperr.CodeAIServiceError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "", time.Second)

			var last RawEvent
			for ev := range c.Stream(context.Background(), "", map[string]any{}) {
				last = ev
			}

			require.Error(t, last.Err)
			var ae *apperr.Error
			require.True(t, errors.As(last.Err, &ae))
			assert.Equal(t, tt.code, ae.Code)
			assert.Equal(t, tt.status, ae.Details["status"])
		})
	}
}

func TestClient_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/query", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"answer":"42","reportMeta":{"fileId":"f-1"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	res, err := c.Query(context.Background(), "", map[string]any{"query": "q"})
	require.NoError(t, err)
	assert.Equal(t, "42", res["answer"])
}

func TestClient_Query_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.Query(context.Background(), "", map[string]any{})
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.CodeAIServiceError, ae.Code)
}

func TestClient_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "/files/f-1", r.URL.Path)
		w.Header().Set("Content-Type", "text/markdown")
		fmt.Fprint(w, "# report")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)

	body, contentType, err := c.Download(context.Background(), "", "f-1")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "# report", string(data))
	assert.Equal(t, "text/markdown", contentType)

	_, _, err = c.Download(context.Background(), "", "missing")
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.CodeNotFound, ae.Code)
}

func TestBuildPayload(t *testing.T) {
	p := BuildPayload("s_1", "t_1", "who won", "report", map[string]any{"patch": "14.1"})
	assert.Equal(t, "who won", p["query"])
	assert.Equal(t, "s_1", p["sessionId"])
	assert.Equal(t, "t_1", p["traceId"])
	assert.Equal(t, "report", p["mode"])
	assert.Equal(t, map[string]any{"patch": "14.1"}, p["context"])

	p = BuildPayload("s", "t", "m", "simple", nil)
	assert.Equal(t, map[string]any{}, p["context"])
}
