package chat

import (
	"encoding/json"
	"strings"

	"github.com/rifthq/smartstats/internal/agent"
)

// accumulator holds the per-turn mutable state folded out of the upstream
// event sequence. One accumulator is owned by one relay consumer; there is
// no cross-turn sharing.
type accumulator struct {
	answer  strings.Builder
	meta    agent.FileMeta
	hasMeta bool
}

func (a *accumulator) appendDelta(delta string) {
	a.answer.WriteString(delta)
}

// setMeta replaces the accumulated metadata wholesale so partial updates
// from different events never mix.
func (a *accumulator) setMeta(meta agent.FileMeta) {
	a.meta = meta
	a.hasMeta = true
}

func (a *accumulator) text() string {
	return a.answer.String()
}

// finalMeta returns the metadata to persist at finalize time. When no
// file_meta event supplied a file id, it falls back to metadata embedded
// in the answer text itself: some agent responses inline a JSON object
// with a reportMeta field, or a flat fileId, instead of emitting a
// dedicated event.
func (a *accumulator) finalMeta() agent.FileMeta {
	if a.hasMeta && a.meta.FileID != "" {
		return a.meta
	}
	if meta, ok := recoverEmbeddedMeta(a.answer.String()); ok {
		return meta
	}
	return a.meta
}

func recoverEmbeddedMeta(answer string) (agent.FileMeta, bool) {
	trimmed := strings.TrimSpace(answer)

	obj := map[string]any{}
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		// The JSON object may be inlined after leading prose.
		start := strings.IndexByte(trimmed, '{')
		end := strings.LastIndexByte(trimmed, '}')
		if start < 0 || end <= start {
			return agent.FileMeta{}, false
		}
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &obj); err != nil {
			return agent.FileMeta{}, false
		}
	}

	if rm, ok := obj["reportMeta"].(map[string]any); ok {
		ev := agent.Normalize(agent.LabelFileMeta, mustJSON(rm))
		if ev.Kind == agent.EventFileMeta && ev.Meta.FileID != "" {
			return ev.Meta, true
		}
	}
	ev := agent.Normalize(agent.LabelFileMeta, mustJSON(obj))
	if ev.Kind == agent.EventFileMeta && ev.Meta.FileID != "" {
		return ev.Meta, true
	}
	return agent.FileMeta{}, false
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
