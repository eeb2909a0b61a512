package parser

// EventType identifies what a stream extractor event carries.
type EventType string

const (
	// EventText is a literal text fragment outside any structured span.
	EventText EventType = "text"
	// EventJSON is a successfully parsed JSON value (object or array).
	EventJSON EventType = "json"
	// EventRaw is the unparsed text of a detected block whose JSON parse failed.
	EventRaw EventType = "raw"
)

// Event is one output unit of the incremental extractor.
type Event struct {
	Type  EventType
	Text  string      // EventText and EventRaw
	Value interface{} // EventJSON: map[string]interface{} or []interface{}
}

func textEvent(s string) Event {
	return Event{Type: EventText, Text: s}
}

func jsonEvent(v interface{}) Event {
	return Event{Type: EventJSON, Value: v}
}

func rawEvent(s string) Event {
	return Event{Type: EventRaw, Text: s}
}
