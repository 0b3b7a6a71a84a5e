package agent

import (
	"encoding/json"
	"strconv"
	"strings"
)

// EventKind tags the closed set of semantic event variants produced by
// Normalize. Core logic switches on the kind; only the normalizer is
// allowed to sniff payload content.
type EventKind int

const (
	EventUnrecognized EventKind = iota
	EventToken
	EventFileMeta
	EventDone
)

// Wire event labels used by the agent's SSE protocol.
const (
	LabelToken    = "token"
	LabelFileMeta = "file_meta"
	LabelDone     = "done"
	LabelError    = "error"
)

// FileMeta carries the report artifact metadata of a file_meta event.
type FileMeta struct {
	FileID   string
	FileName string
	FileType string
	Size     *int64
}

// Event is the normalized form of one raw upstream event.
type Event struct {
	Kind  EventKind
	Delta string   // EventToken
	Meta  FileMeta // EventFileMeta
	Raw   string   // original payload, kept for transparent relay
}

// Normalize parses one raw upstream event into its semantic variant.
//
// The upstream sometimes drops the event label (the payload then arrives as
// a default message event), and occasionally re-embeds a whole
// "event:/data:" block inside the payload, so normalization first extracts
// the payload substring and then falls back to content sniffing when the
// label is absent or unrecognized.
func Normalize(label, data string) Event {
	payload := extractPayload(data)

	switch label {
	case LabelToken:
		return tokenEvent(payload)
	case LabelFileMeta:
		return fileMetaEvent(payload)
	case LabelDone:
		return Event{Kind: EventDone, Raw: payload}
	}

	// Label missing or unknown: sniff the payload shape.
	obj := map[string]any{}
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		// Not JSON at all. A token-looking fragment is still appended
		// verbatim rather than dropped.
		if strings.Contains(payload, `"delta"`) {
			return Event{Kind: EventToken, Delta: payload, Raw: payload}
		}
		return Event{Kind: EventUnrecognized, Raw: payload}
	}

	if _, ok := obj["delta"]; ok {
		return tokenEvent(payload)
	}
	if ok, truthy := boolField(obj, "ok"); ok && truthy {
		return Event{Kind: EventDone, Raw: payload}
	}
	if meta, ok := sniffFileMeta(obj); ok {
		return Event{Kind: EventFileMeta, Meta: meta, Raw: payload}
	}
	return Event{Kind: EventUnrecognized, Raw: payload}
}

// tokenEvent parses {"delta": "..."}. An unparsable payload degrades to a
// literal append; a token is never dropped.
func tokenEvent(payload string) Event {
	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err == nil {
		if d, ok := obj["delta"]; ok {
			if d == nil {
				return Event{Kind: EventToken, Raw: payload}
			}
			return Event{Kind: EventToken, Delta: toString(d), Raw: payload}
		}
	}
	return Event{Kind: EventToken, Delta: payload, Raw: payload}
}

// fileMetaEvent parses a labeled file_meta payload. Parse failures are
// discarded so a file id is never invented.
func fileMetaEvent(payload string) Event {
	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return Event{Kind: EventUnrecognized, Raw: payload}
	}
	meta, ok := sniffFileMeta(obj)
	if !ok {
		// Labeled file_meta without a recognizable file id still replaces
		// accumulated metadata wholesale; downstream writes no-op on the
		// empty id.
		meta = parseFileMeta(obj)
	}
	return Event{Kind: EventFileMeta, Meta: meta, Raw: payload}
}

// sniffFileMeta finds a file id either at the top level or nested under
// common wrapper keys.
func sniffFileMeta(obj map[string]any) (FileMeta, bool) {
	if m := parseFileMeta(obj); m.FileID != "" {
		return m, true
	}
	for _, key := range []string{"data", "result", "payload", "meta"} {
		if inner, ok := obj[key].(map[string]any); ok {
			if m := parseFileMeta(inner); m.FileID != "" {
				return m, true
			}
		}
	}
	return FileMeta{}, false
}

// parseFileMeta reads artifact fields, normalizing camelCase and
// snake_case variants. The first non-absent candidate wins.
func parseFileMeta(obj map[string]any) FileMeta {
	return FileMeta{
		FileID:   stringField(obj, "fileId", "file_id", "id"),
		FileName: stringField(obj, "fileName", "file_name", "name"),
		FileType: stringField(obj, "fileType", "file_type", "type"),
		Size:     sizeField(obj, "size", "fileSize", "file_size"),
	}
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return toString(v)
		}
	}
	return ""
}

func sizeField(obj map[string]any, keys ...string) *int64 {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			size := int64(n)
			return &size
		case string:
			if size, err := strconv.ParseInt(n, 10, 64); err == nil {
				return &size
			}
		}
	}
	return nil
}

func boolField(obj map[string]any, key string) (present, truthy bool) {
	v, ok := obj[key]
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return true, b
	case string:
		return true, b == "true"
	default:
		return true, false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// extractPayload handles payloads that arrive as a re-embedded SSE block
// ("event: token\ndata: {...}") instead of a bare JSON document. It
// returns the data line's payload; plain payloads pass through untouched.
func extractPayload(data string) string {
	trimmed := strings.TrimSpace(data)
	if !strings.Contains(trimmed, "data:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		// JSON that merely mentions "data:" somewhere in its content.
		return trimmed
	}

	idx := strings.Index(trimmed, "data:")
	rest := trimmed[idx+len("data:"):]
	if end := strings.Index(rest, "event:"); end >= 0 {
		rest = rest[:end]
	}
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}
