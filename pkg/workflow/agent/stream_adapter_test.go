package agent

import (
	"errors"
	"testing"

	"ai-workflowgen-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedChunks(chunks ...llm.StreamChunk) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var collected []Event
	for ev := range events {
		collected = append(collected, ev)
	}
	return collected
}

func TestStreamAdapterOrderingAndTerminal(t *testing.T) {
	adapter := NewStreamAdapter(func(accumulated string) (map[string]interface{}, error) {
		return map[string]interface{}{"text": accumulated}, nil
	})

	events := drain(t, adapter.Run(feedChunks(
		llm.StreamChunk{ContentDelta: "hello "},
		llm.StreamChunk{ContentDelta: "world"},
	)))

	require.Len(t, events, 3)
	assert.Equal(t, EventContent, events[0].Type)
	assert.Equal(t, "hello ", events[0].Content)
	assert.Equal(t, EventContent, events[1].Type)
	assert.Equal(t, "world", events[1].Content)

	assert.Equal(t, EventDone, events[2].Type)
	assert.Equal(t, map[string]interface{}{"text": "hello world"}, events[2].Result)
}

func TestStreamAdapterExactlyOneTerminal(t *testing.T) {
	adapter := NewStreamAdapter(nil)

	events := drain(t, adapter.Run(feedChunks(
		llm.StreamChunk{ContentDelta: "a"},
		llm.StreamChunk{ContentDelta: "b"},
	)))

	terminals := 0
	for _, ev := range events {
		if ev.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.True(t, events[len(events)-1].Terminal(), "terminal event must be last")
}

func TestStreamAdapterStreamError(t *testing.T) {
	adapter := NewStreamAdapter(func(string) (map[string]interface{}, error) {
		t.Fatal("post-process must not run on a failed stream")
		return nil, nil
	})

	events := drain(t, adapter.Run(feedChunks(
		llm.StreamChunk{ContentDelta: "partial"},
		llm.StreamChunk{Err: errors.New("connection reset")},
	)))

	require.Len(t, events, 2)
	assert.Equal(t, EventContent, events[0].Type)
	assert.Equal(t, EventError, events[1].Type)
	assert.Contains(t, events[1].Err, "connection reset")
}

func TestStreamAdapterEmptyStream(t *testing.T) {
	adapter := NewStreamAdapter(func(string) (map[string]interface{}, error) {
		t.Fatal("post-process must not run on empty output")
		return nil, nil
	})

	events := drain(t, adapter.Run(feedChunks()))

	require.Len(t, events, 1)
	assert.Equal(t, EventDone, events[0].Type)
	assert.Empty(t, events[0].Content)
}

func TestStreamAdapterToolCalls(t *testing.T) {
	adapter := NewStreamAdapter(nil)

	events := drain(t, adapter.Run(feedChunks(
		llm.StreamChunk{ToolCalls: []llm.ToolCall{{Name: "lookup", Arguments: `{"q":"x"}`}}},
		llm.StreamChunk{ContentDelta: "answer"},
	)))

	require.Len(t, events, 3)
	assert.Equal(t, EventToolCall, events[0].Type)
	require.NotNil(t, events[0].ToolCall)
	assert.Equal(t, "lookup", events[0].ToolCall.Name)
	assert.Equal(t, EventContent, events[1].Type)
	assert.Equal(t, EventDone, events[2].Type)
}

func TestStreamAdapterPostProcessPanic(t *testing.T) {
	adapter := NewStreamAdapter(func(string) (map[string]interface{}, error) {
		panic("boom")
	})

	events := drain(t, adapter.Run(feedChunks(
		llm.StreamChunk{ContentDelta: "content"},
	)))

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Err, "boom")
}

func TestStreamAdapterPostProcessError(t *testing.T) {
	adapter := NewStreamAdapter(func(string) (map[string]interface{}, error) {
		return nil, errors.New("cannot make sense of it")
	})

	events := drain(t, adapter.Run(feedChunks(
		llm.StreamChunk{ContentDelta: "content"},
	)))

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Err, "cannot make sense of it")
}
