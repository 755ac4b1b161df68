package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtteranceQueueOrder(t *testing.T) {
	q := newUtteranceQueue()

	q.Add("first")
	q.Add("second")

	assert.Equal(t, "first", <-q.Channel())
	assert.Equal(t, "second", <-q.Channel())
}

func TestUtteranceQueueNeverBlocks(t *testing.T) {
	q := newUtteranceQueue()

	// Twice the buffer size; the overflow is dropped, not deadlocked.
	for i := 0; i < queueBufferSize*2; i++ {
		q.Add("utterance")
	}

	assert.Len(t, q.Channel(), queueBufferSize)
}

func TestFrameBufferDropsUnderBackpressure(t *testing.T) {
	b := newFrameBuffer(2)

	b.Add([]byte{1})
	b.Add([]byte{2})
	b.Add([]byte{3})

	require.Len(t, b.Channel(), 2)
	assert.Equal(t, []byte{1}, <-b.Channel())
	assert.Equal(t, []byte{2}, <-b.Channel())
}

func TestUnwrapInput(t *testing.T) {
	tests := []struct {
		name      string
		arguments string
		want      string
	}{
		{name: "wrapped", arguments: `{"input": "search query"}`, want: "search query"},
		{name: "bare string", arguments: "search query", want: "search query"},
		{name: "other shape", arguments: `{"query": "x"}`, want: `{"query": "x"}`},
		{name: "empty input field", arguments: `{"input": ""}`, want: `{"input": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unwrapInput(tt.arguments))
		})
	}
}
