package sse

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	frame, err := Format(map[string]interface{}{"event": "content", "data": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "data: {\"data\":\"hi\",\"event\":\"content\"}\n\n", frame)
}

func TestFormatUnmarshalable(t *testing.T) {
	_, err := Format(func() {})
	assert.Error(t, err)
}

func TestWriterSendAndDone(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bufio.NewWriter(&buf))

	require.NoError(t, w.Send(map[string]string{"a": "1"}))
	require.NoError(t, w.Send(map[string]string{"b": "2"}))
	require.NoError(t, w.SendDone())

	out := buf.String()
	assert.Equal(t, "data: {\"a\":\"1\"}\n\ndata: {\"b\":\"2\"}\n\ndata: [DONE]\n\n", out)
}

func TestWriterFlushesPerEvent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bufio.NewWriter(&buf))

	require.NoError(t, w.Send(map[string]string{"first": "event"}))
	// Visible immediately, without waiting for the done sentinel.
	assert.Contains(t, buf.String(), "data: {\"first\":\"event\"}\n\n")
}
