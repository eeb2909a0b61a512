package agent

import "ai-workflowgen-be/pkg/llm"

// EventType enumerates the events one analysis turn can emit.
type EventType string

const (
	EventContent  EventType = "content"
	EventToolCall EventType = "tool_call"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one unit of a turn's output stream. A turn emits zero or more
// content/tool_call events followed by exactly one done or error event.
type Event struct {
	Type     EventType
	Content  string                 // EventContent; EventDone when no post-processor ran
	ToolCall *llm.ToolCall          // EventToolCall
	Result   map[string]interface{} // EventDone: structured post-processed result
	Err      string                 // EventError
}

// Terminal reports whether the event ends the turn.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
