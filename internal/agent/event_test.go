package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_LabeledEvents(t *testing.T) {
	tests := []struct {
		name  string
		label string
		data  string
		want  Event
	}{
		{
			name:  "token with delta",
			label: LabelToken,
			data:  `{"delta":"Hello"}`,
			want:  Event{Kind: EventToken, Delta: "Hello"},
		},
		{
			name:  "token with null delta appends nothing",
			label: LabelToken,
			data:  `{"delta":null}`,
			want:  Event{Kind: EventToken, Delta: ""},
		},
		{
			name:  "token with numeric delta",
			label: LabelToken,
			data:  `{"delta":42}`,
			want:  Event{Kind: EventToken, Delta: "42"},
		},
		{
			name:  "unparsable token degrades to literal append",
			label: LabelToken,
			data:  `not json`,
			want:  Event{Kind: EventToken, Delta: "not json"},
		},
		{
			name:  "done",
			label: LabelDone,
			data:  `{"ok":true}`,
			want:  Event{Kind: EventDone},
		},
		{
			name:  "file_meta camelCase",
			label: LabelFileMeta,
			data:  `{"fileId":"f-1","fileName":"report.md","fileType":"markdown","size":123}`,
			want:  Event{Kind: EventFileMeta, Meta: FileMeta{FileID: "f-1", FileName: "report.md", FileType: "markdown", Size: int64Ptr(123)}},
		},
		{
			name:  "file_meta snake_case",
			label: LabelFileMeta,
			data:  `{"file_id":"f-2","file_name":"r.md","file_type":"markdown","file_size":"77"}`,
			want:  Event{Kind: EventFileMeta, Meta: FileMeta{FileID: "f-2", FileName: "r.md", FileType: "markdown", Size: int64Ptr(77)}},
		},
		{
			name:  "file_meta bare id alias",
			label: LabelFileMeta,
			data:  `{"id":"f-3","name":"x","type":"markdown"}`,
			want:  Event{Kind: EventFileMeta, Meta: FileMeta{FileID: "f-3", FileName: "x", FileType: "markdown"}},
		},
		{
			name:  "unparsable file_meta never invents an id",
			label: LabelFileMeta,
			data:  `garbage`,
			want:  Event{Kind: EventUnrecognized},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.label, tt.data)
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.Equal(t, tt.want.Delta, got.Delta)
			assert.Equal(t, tt.want.Meta, got.Meta)
		})
	}
}

func TestNormalize_Sniffing(t *testing.T) {
	t.Run("unlabeled delta becomes token", func(t *testing.T) {
		got := Normalize("", `{"delta":"chunk"}`)
		assert.Equal(t, EventToken, got.Kind)
		assert.Equal(t, "chunk", got.Delta)
	})

	t.Run("unlabeled truthy ok becomes done", func(t *testing.T) {
		got := Normalize("", `{"ok":true}`)
		assert.Equal(t, EventDone, got.Kind)
	})

	t.Run("unlabeled falsy ok stays unrecognized", func(t *testing.T) {
		got := Normalize("", `{"ok":false}`)
		assert.Equal(t, EventUnrecognized, got.Kind)
	})

	t.Run("unlabeled file id becomes file_meta", func(t *testing.T) {
		got := Normalize("", `{"fileId":"f-9","fileName":"out.md"}`)
		require.Equal(t, EventFileMeta, got.Kind)
		assert.Equal(t, "f-9", got.Meta.FileID)
	})

	t.Run("wrapped file meta is unwrapped", func(t *testing.T) {
		for _, wrapper := range []string{"data", "result", "payload", "meta"} {
			got := Normalize("", `{"`+wrapper+`":{"fileId":"f-w"}}`)
			require.Equal(t, EventFileMeta, got.Kind, wrapper)
			assert.Equal(t, "f-w", got.Meta.FileID, wrapper)
		}
	})

	t.Run("non-JSON mentioning delta is appended verbatim", func(t *testing.T) {
		payload := `broken {"delta": "x"`
		got := Normalize("", payload)
		assert.Equal(t, EventToken, got.Kind)
		assert.Equal(t, payload, got.Delta)
	})

	t.Run("unknown JSON is unrecognized", func(t *testing.T) {
		got := Normalize("", `{"something":"else"}`)
		assert.Equal(t, EventUnrecognized, got.Kind)
	})

	t.Run("unknown label falls back to sniffing", func(t *testing.T) {
		got := Normalize("message", `{"delta":"hi"}`)
		assert.Equal(t, EventToken, got.Kind)
		assert.Equal(t, "hi", got.Delta)
	})
}

func TestNormalize_EmbeddedBlock(t *testing.T) {
	t.Run("re-embedded sse block is unwrapped", func(t *testing.T) {
		got := Normalize("", "event: token\ndata: {\"delta\":\"inner\"}\n\n")
		assert.Equal(t, EventToken, got.Kind)
		assert.Equal(t, "inner", got.Delta)
	})

	t.Run("json mentioning data colon passes through", func(t *testing.T) {
		got := Normalize(LabelToken, `{"delta":"see data: section"}`)
		assert.Equal(t, "see data: section", got.Delta)
	})
}

func int64Ptr(n int64) *int64 { return &n }
