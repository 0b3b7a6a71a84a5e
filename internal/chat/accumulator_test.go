package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rifthq/smartstats/internal/agent"
)

func TestAccumulator_AppendDelta(t *testing.T) {
	acc := &accumulator{}
	acc.appendDelta("Hello")
	acc.appendDelta(", ")
	acc.appendDelta("world")
	assert.Equal(t, "Hello, world", acc.text())
}

func TestAccumulator_SetMetaReplacesWholesale(t *testing.T) {
	acc := &accumulator{}
	size := int64(10)
	acc.setMeta(agent.FileMeta{FileID: "f-1", FileName: "a.md", FileType: "markdown", Size: &size})
	acc.setMeta(agent.FileMeta{FileID: "f-2"})

	meta := acc.finalMeta()
	assert.Equal(t, "f-2", meta.FileID)
	assert.Empty(t, meta.FileName, "earlier fields must not leak into the replacement")
	assert.Nil(t, meta.Size)
}

func TestAccumulator_FinalMeta_EmbeddedRecovery(t *testing.T) {
	t.Run("reportMeta object in answer", func(t *testing.T) {
		acc := &accumulator{}
		acc.appendDelta(`{"answer":"done","reportMeta":{"fileId":"f-9","fileName":"out.md"}}`)

		meta := acc.finalMeta()
		assert.Equal(t, "f-9", meta.FileID)
		assert.Equal(t, "out.md", meta.FileName)
	})

	t.Run("flat fileId after leading prose", func(t *testing.T) {
		acc := &accumulator{}
		acc.appendDelta(`Report ready: {"fileId":"f-3","fileType":"markdown"}`)

		meta := acc.finalMeta()
		assert.Equal(t, "f-3", meta.FileID)
	})

	t.Run("event meta wins over embedded", func(t *testing.T) {
		acc := &accumulator{}
		acc.setMeta(agent.FileMeta{FileID: "f-event"})
		acc.appendDelta(`{"fileId":"f-embedded"}`)

		assert.Equal(t, "f-event", acc.finalMeta().FileID)
	})

	t.Run("plain prose recovers nothing", func(t *testing.T) {
		acc := &accumulator{}
		acc.appendDelta("T1 won the series 3-1.")

		assert.Empty(t, acc.finalMeta().FileID)
	})
}
