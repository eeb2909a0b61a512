package parser

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// StreamExtractor is a character-level state machine over incremental text
// deltas. It detects fenced code blocks and bare {...} JSON spans and turns
// them into typed events; everything else passes through as text fragments.
//
// The machine never fails on malformed input: a block that does not parse is
// emitted as its raw text. One extractor handles exactly one pass over one
// logical stream; events preserve input order regardless of how the input is
// chunked.
type StreamExtractor struct {
	inCodeBlock bool
	inJSON      bool

	tickRun    int    // consecutive backticks seen so far
	blockCache string // fenced block content (fences excluded)
	jsonCache  string // bare JSON span accumulator
	braceDepth int

	pending []byte // trailing bytes of a rune split across chunk boundaries
	done    bool
}

func NewStreamExtractor() *StreamExtractor {
	return &StreamExtractor{}
}

// Feed consumes one delta and returns the events it completes. Deltas may cut
// multi-byte characters; the dangling bytes are held until the next call.
func (e *StreamExtractor) Feed(delta string) []Event {
	if e.done || delta == "" {
		return nil
	}

	data := delta
	if len(e.pending) > 0 {
		data = string(e.pending) + delta
		e.pending = nil
	}

	var events []Event
	var text strings.Builder

	flushText := func() {
		if text.Len() > 0 {
			events = append(events, textEvent(text.String()))
			text.Reset()
		}
	}

	for i := 0; i < len(data); {
		r, size := utf8.DecodeRuneInString(data[i:])
		if r == utf8.RuneError && size == 1 && !utf8.RuneStart(data[i]) {
			// stray continuation byte; skip defensively
			i++
			continue
		}
		if r == utf8.RuneError && size == 1 {
			// incomplete rune at the tail, wait for the next delta
			if len(data)-i < utf8.UTFMax {
				e.pending = []byte(data[i:])
				break
			}
			i++
			continue
		}

		for _, ev := range e.step(r, &text) {
			flushText()
			events = append(events, ev)
		}
		i += size
	}

	flushText()
	return events
}

// Flush terminates the stream: any still-open accumulator is parsed if
// possible, otherwise emitted as raw text. The extractor accepts no further
// input afterwards.
func (e *StreamExtractor) Flush() []Event {
	if e.done {
		return nil
	}
	e.done = true

	var events []Event

	switch {
	case e.inCodeBlock:
		content := e.blockCache
		if e.tickRun > 0 {
			content += strings.Repeat("`", e.tickRun)
		}
		events = append(events, parseBlockContent(content)...)
	case e.inJSON:
		events = append(events, parseJSONSpan(e.jsonCache))
	case e.tickRun > 0:
		// backticks that never became a fence
		events = append(events, textEvent(strings.Repeat("`", e.tickRun)))
	}

	e.blockCache = ""
	e.jsonCache = ""
	e.tickRun = 0
	return events
}

// step advances the machine by one character. Completed blocks come back as
// events; plain characters go into text.
func (e *StreamExtractor) step(r rune, text *strings.Builder) []Event {
	if e.inCodeBlock {
		return e.stepCodeBlock(r)
	}
	if e.inJSON {
		return e.stepJSON(r)
	}
	return e.stepOutside(r, text)
}

func (e *StreamExtractor) stepOutside(r rune, text *strings.Builder) []Event {
	if r == '`' {
		e.tickRun++
		if e.tickRun == 3 {
			// opening fence recognized: its backticks are stripped
			e.tickRun = 0
			e.inCodeBlock = true
			e.blockCache = ""
		}
		return nil
	}

	// a run shorter than a fence is plain text after all
	if e.tickRun > 0 {
		text.WriteString(strings.Repeat("`", e.tickRun))
		e.tickRun = 0
	}

	if r == '{' {
		e.inJSON = true
		e.braceDepth = 1
		e.jsonCache = "{"
		return nil
	}

	text.WriteRune(r)
	return nil
}

func (e *StreamExtractor) stepJSON(r rune) []Event {
	e.jsonCache += string(r)

	switch r {
	case '{':
		e.braceDepth++
	case '}':
		e.braceDepth--
		if e.braceDepth == 0 {
			ev := parseJSONSpan(e.jsonCache)
			e.inJSON = false
			e.jsonCache = ""
			return []Event{ev}
		}
	}
	return nil
}

func (e *StreamExtractor) stepCodeBlock(r rune) []Event {
	if r == '`' {
		e.tickRun++
		if e.tickRun == 3 {
			// closing fence: parse the accumulated content
			events := parseBlockContent(e.blockCache)
			e.inCodeBlock = false
			e.blockCache = ""
			e.tickRun = 0
			return events
		}
		return nil
	}

	if e.tickRun > 0 {
		e.blockCache += strings.Repeat("`", e.tickRun)
		e.tickRun = 0
	}
	e.blockCache += string(r)
	return nil
}

// parseJSONSpan parses an accumulated bare JSON span; failure degrades to the
// raw accumulated text.
func parseJSONSpan(span string) Event {
	var v interface{}
	if err := json.Unmarshal([]byte(span), &v); err != nil {
		return rawEvent(span)
	}
	return jsonEvent(v)
}

// parseBlockContent interprets the content of a closed fenced block. An
// optional language tag line right after the opening fence is tolerated.
// One or more JSON payloads produce one event each; anything unparseable
// yields the whole block as raw text.
func parseBlockContent(content string) []Event {
	payload := strings.TrimSpace(stripLanguageTag(content))

	start := strings.IndexAny(payload, "[{")
	end := strings.LastIndexAny(payload, "]}")
	if start == -1 || end == -1 || end < start {
		return []Event{rawEvent(content)}
	}

	dec := json.NewDecoder(strings.NewReader(payload[start : end+1]))
	var values []interface{}
	for dec.More() {
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return []Event{rawEvent(content)}
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return []Event{rawEvent(content)}
	}

	events := make([]Event, len(values))
	for i, v := range values {
		events[i] = jsonEvent(v)
	}
	return events
}

// stripLanguageTag drops a leading "json"/"yaml"/... tag line left over from
// the opening fence.
func stripLanguageTag(content string) string {
	trimmed := strings.TrimLeft(content, " \t")
	nl := strings.IndexByte(trimmed, '\n')
	if nl == -1 {
		return content
	}
	tag := strings.TrimSpace(trimmed[:nl])
	if tag == "" {
		return content
	}
	for _, r := range tag {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return content
		}
	}
	return trimmed[nl+1:]
}
