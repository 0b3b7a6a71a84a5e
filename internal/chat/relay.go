package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rifthq/smartstats/internal/agent"
	"github.com/rifthq/smartstats/internal/apperr"
	"github.com/rifthq/smartstats/internal/domain"
)

// Event is one server-sent event forwarded to the downstream client.
type Event struct {
	Event string
	Data  string
	ID    string
}

// Gateway abstracts the agent client for the relay.
type Gateway interface {
	Stream(ctx context.Context, accessToken string, payload map[string]any) <-chan agent.RawEvent
	Query(ctx context.Context, accessToken string, payload map[string]any) (map[string]any, error)
}

// TurnStore abstracts the persistence operations the relay needs.
type TurnStore interface {
	AppendUserMessage(ctx context.Context, userID, sessionID, turnID, traceID, mode, content string) error
	FinalizeAssistantMessage(ctx context.Context, userID, sessionID, turnID, traceID, mode, content string, meta agent.FileMeta) error
	UpsertReportMeta(ctx context.Context, userID, sessionID, turnID, traceID, mode string, meta agent.FileMeta) error
}

// Relay orchestrates one conversation turn: it writes the user message,
// subscribes to the agent stream, folds events into the per-turn
// accumulator, forwards them transparently downstream, and guarantees the
// assistant row is finalized exactly once on every termination path.
type Relay struct {
	gateway Gateway
	store   TurnStore
}

// NewRelay creates a stream relay.
func NewRelay(gateway Gateway, store TurnStore) *Relay {
	return &Relay{gateway: gateway, store: store}
}

// Stream starts a streaming turn. Pre-stream failures (ownership, user
// message write) are returned synchronously so the handler can still set a
// proper status line; once the channel is returned, all failures become
// error events on it.
//
// The returned channel is unbuffered: a slow consumer back-pressures the
// upstream read. It is closed after the terminal event.
func (r *Relay) Stream(ctx context.Context, userID, accessToken, traceID string, req domain.ChatRequest) (<-chan Event, error) {
	mode := domain.NormalizeMode(req.Mode)
	turnID := domain.NewTurnID()

	if err := r.store.AppendUserMessage(ctx, userID, req.SessionID, turnID, traceID, mode, req.Message); err != nil {
		return nil, err
	}

	payload := agent.BuildPayload(req.SessionID, traceID, req.Message, mode, req.Context)
	upstream := r.gateway.Stream(ctx, accessToken, payload)

	out := make(chan Event)
	go r.run(ctx, upstream, out, turn{
		userID:  userID,
		session: req.SessionID,
		turnID:  turnID,
		traceID: traceID,
		mode:    mode,
	})
	return out, nil
}

type turn struct {
	userID  string
	session string
	turnID  string
	traceID string
	mode    string
}

func (r *Relay) run(ctx context.Context, upstream <-chan agent.RawEvent, out chan<- Event, t turn) {
	defer close(out)

	acc := &accumulator{}
	var once sync.Once

	// Finalize must run even when the downstream context is already
	// cancelled, otherwise a partial answer is lost on client disconnect.
	finalize := func() {
		once.Do(func() {
			storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := r.store.FinalizeAssistantMessage(storeCtx, t.userID, t.session, t.turnID, t.traceID, t.mode, acc.text(), acc.finalMeta()); err != nil {
				log.Error().Err(err).Str("trace_id", t.traceID).Str("turn_id", t.turnID).
					Msg("failed to finalize assistant message")
			}
		})
	}

	// send forwards one event downstream; a cancelled client is a terminal
	// signal like any other.
	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			finalize()
			return false
		}
	}

	for {
		var raw agent.RawEvent
		var ok bool
		select {
		case raw, ok = <-upstream:
		case <-ctx.Done():
			finalize()
			return
		}
		if !ok {
			// Upstream exhausted without a done event: treated as silent
			// success, finalize still runs.
			finalize()
			return
		}

		if raw.Err != nil {
			finalize()
			send(errorEvent(raw.Err, t.traceID))
			return
		}

		ev := agent.Normalize(raw.Event, raw.Data)
		switch ev.Kind {
		case agent.EventToken:
			acc.appendDelta(ev.Delta)

		case agent.EventFileMeta:
			acc.setMeta(ev.Meta)
			// Persist immediately so metadata survives an interrupted
			// stream; the finalize path only fills gaps.
			metaCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			if err := r.store.UpsertReportMeta(metaCtx, t.userID, t.session, t.turnID, t.traceID, t.mode, ev.Meta); err != nil {
				log.Error().Err(err).Str("trace_id", t.traceID).Str("turn_id", t.turnID).
					Msg("failed to upsert report meta")
			}
			cancel()

		case agent.EventDone:
			finalize()
		}

		// Transparent relay: the raw frame goes downstream unmodified.
		if !send(Event{Event: raw.Event, Data: raw.Data, ID: raw.ID}) {
			return
		}
	}
}

// Query runs a non-streaming turn against the agent and persists both
// halves. The response is enriched with traceId, sessionId and startedAt
// when the agent omitted them.
func (r *Relay) Query(ctx context.Context, userID, accessToken, traceID string, req domain.ChatRequest) (map[string]any, error) {
	mode := domain.NormalizeMode(req.Mode)
	turnID := domain.NewTurnID()

	if err := r.store.AppendUserMessage(ctx, userID, req.SessionID, turnID, traceID, mode, req.Message); err != nil {
		return nil, err
	}

	payload := agent.BuildPayload(req.SessionID, traceID, req.Message, mode, req.Context)
	res, err := r.gateway.Query(ctx, accessToken, payload)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, apperr.New(apperr.CodeAIServiceError, "agent returned empty response").
			WithDetails(map[string]any{"traceId": traceID})
	}

	answer, _ := res["answer"].(string)
	var meta agent.FileMeta
	if rm, ok := res["reportMeta"].(map[string]any); ok {
		ev := agent.Normalize(agent.LabelFileMeta, mustJSON(rm))
		if ev.Kind == agent.EventFileMeta {
			meta = ev.Meta
		}
	}

	if err := r.store.FinalizeAssistantMessage(ctx, userID, req.SessionID, turnID, traceID, mode, answer, meta); err != nil {
		return nil, err
	}

	if _, ok := res["traceId"]; !ok {
		res["traceId"] = traceID
	}
	if _, ok := res["sessionId"]; !ok {
		res["sessionId"] = req.SessionID
	}
	if _, ok := res["startedAt"]; !ok {
		res["startedAt"] = time.Now().UTC().Format(time.RFC3339)
	}
	return res, nil
}

// errorEvent serializes an upstream failure into the single synthetic
// error event sent in place of a transport-level abort.
func errorEvent(err error, traceID string) Event {
	ae := apperr.From(err)
	body := map[string]any{
		"code":      ae.Code,
		"message":   ae.Message,
		"traceId":   traceID,
		"retryable": true,
	}
	if ae.Details != nil {
		body["details"] = ae.Details
	}
	data, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		data = []byte(`{"code":"INTERNAL_ERROR","retryable":true}`)
	}
	return Event{Event: agent.LabelError, Data: string(data)}
}
