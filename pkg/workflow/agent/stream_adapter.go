package agent

import (
	"fmt"

	"ai-workflowgen-be/pkg/llm"
)

// PostProcessFunc turns the fully accumulated model output into the turn's
// structured result.
type PostProcessFunc func(accumulated string) (map[string]interface{}, error)

// StreamAdapter wraps a model's chunk stream: it forwards content deltas and
// tool-call notices as events while accumulating the full text, then runs the
// configured post-processor once the stream ends.
//
// The produced sequence always terminates with exactly one done or error
// event, whatever happens while draining the stream.
type StreamAdapter struct {
	postProcess PostProcessFunc
}

func NewStreamAdapter(postProcess PostProcessFunc) *StreamAdapter {
	return &StreamAdapter{postProcess: postProcess}
}

// Run drains chunks and emits events on the returned channel. The channel is
// closed right after the terminal event. The caller owns consumption pace;
// an abandoned consumer simply leaves the stream undrained.
func (a *StreamAdapter) Run(chunks <-chan llm.StreamChunk) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		var accumulated string
		var streamErr error

		for chunk := range chunks {
			if chunk.Err != nil {
				streamErr = chunk.Err
				break
			}
			if chunk.ContentDelta != "" {
				accumulated += chunk.ContentDelta
				out <- Event{Type: EventContent, Content: chunk.ContentDelta}
			}
			for i := range chunk.ToolCalls {
				tc := chunk.ToolCalls[i]
				out <- Event{Type: EventToolCall, ToolCall: &tc}
			}
		}

		if streamErr != nil {
			out <- Event{Type: EventError, Err: streamErr.Error()}
			return
		}

		out <- a.finish(accumulated)
	}()

	return out
}

// finish runs post-processing over the accumulated text and builds the
// terminal event. A panicking or failing post-processor terminates the turn
// with an error event instead.
func (a *StreamAdapter) finish(accumulated string) (terminal Event) {
	defer func() {
		if r := recover(); r != nil {
			terminal = Event{Type: EventError, Err: fmt.Sprintf("post-process panic: %v", r)}
		}
	}()

	if a.postProcess == nil || accumulated == "" {
		return Event{Type: EventDone, Content: accumulated}
	}

	result, err := a.postProcess(accumulated)
	if err != nil {
		return Event{Type: EventError, Err: err.Error()}
	}
	return Event{Type: EventDone, Result: result}
}
