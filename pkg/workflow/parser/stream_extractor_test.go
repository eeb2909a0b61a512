package parser

import (
	"reflect"
	"testing"
)

// collect runs a full pass (every Feed plus the final Flush) and returns the
// emitted events with adjacent text fragments merged, so assertions do not
// depend on how the input was chunked.
func collect(chunks []string) []Event {
	e := NewStreamExtractor()
	var events []Event
	for _, chunk := range chunks {
		events = append(events, e.Feed(chunk)...)
	}
	events = append(events, e.Flush()...)
	return mergeText(events)
}

func mergeText(events []Event) []Event {
	var merged []Event
	for _, ev := range events {
		if ev.Type == EventText && len(merged) > 0 && merged[len(merged)-1].Type == EventText {
			merged[len(merged)-1].Text += ev.Text
			continue
		}
		merged = append(merged, ev)
	}
	return merged
}

func TestStreamExtractor(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Event
	}{
		{
			name:  "plain text passes through",
			input: "hello world",
			want:  []Event{{Type: EventText, Text: "hello world"}},
		},
		{
			name:  "fenced json block with surrounding text",
			input: "prefix ```json\n{\"a\": 1}\n``` suffix",
			want: []Event{
				{Type: EventText, Text: "prefix "},
				{Type: EventJSON, Value: map[string]interface{}{"a": float64(1)}},
				{Type: EventText, Text: " suffix"},
			},
		},
		{
			name:  "bare json object",
			input: "result: {\"ok\": true} done",
			want: []Event{
				{Type: EventText, Text: "result: "},
				{Type: EventJSON, Value: map[string]interface{}{"ok": true}},
				{Type: EventText, Text: " done"},
			},
		},
		{
			name:  "nested braces tracked by depth",
			input: "{\"outer\": {\"inner\": 2}}",
			want: []Event{
				{Type: EventJSON, Value: map[string]interface{}{"outer": map[string]interface{}{"inner": float64(2)}}},
			},
		},
		{
			name:  "malformed bare span degrades to raw text",
			input: "{not json}",
			want:  []Event{{Type: EventRaw, Text: "{not json}"}},
		},
		{
			name:  "unclosed block parsed at flush",
			input: "```json\n{\"open\": 1}\n",
			want: []Event{
				{Type: EventJSON, Value: map[string]interface{}{"open": float64(1)}},
			},
		},
		{
			name:  "unclosed bare span flushed",
			input: "{\"a\": ",
			want:  []Event{{Type: EventRaw, Text: "{\"a\": "}},
		},
		{
			name:  "short backtick run is plain text",
			input: "use `code` here",
			want:  []Event{{Type: EventText, Text: "use `code` here"}},
		},
		{
			name:  "trailing backticks flushed losslessly",
			input: "ends with ``",
			want:  []Event{{Type: EventText, Text: "ends with ``"}},
		},
		{
			name:  "unparseable fenced block kept raw",
			input: "```\nplain prose, no json\n```",
			want:  []Event{{Type: EventRaw, Text: "\nplain prose, no json\n"}},
		},
		{
			name:  "fenced array payload",
			input: "```json\n[{\"id\": 1}]\n```",
			want: []Event{
				{Type: EventJSON, Value: []interface{}{map[string]interface{}{"id": float64(1)}}},
			},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect([]string{tt.input})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("single feed: got %#v, want %#v", got, tt.want)
			}
		})
	}
}

// The extractor must produce the same logical events no matter where the
// input is cut, including mid-rune and mid-fence.
func TestStreamExtractorChunkInvariance(t *testing.T) {
	inputs := []string{
		"prefix ```json\n{\"a\": 1}\n``` suffix",
		"text {\"key\": \"значение\"} more",
		"``` \n{\"x\": [1, 2, 3]}\n```",
		"no structure at all, just words",
		"{\"nested\": {\"deep\": {\"ok\": true}}}",
	}

	for _, input := range inputs {
		whole := collect([]string{input})

		// rune-by-rune
		var runeChunks []string
		for _, r := range input {
			runeChunks = append(runeChunks, string(r))
		}
		if got := collect(runeChunks); !reflect.DeepEqual(got, whole) {
			t.Errorf("rune chunking diverged for %q:\n got %#v\nwant %#v", input, got, whole)
		}

		// byte pairs, which can split multi-byte runes
		var byteChunks []string
		for i := 0; i < len(input); i += 2 {
			end := i + 2
			if end > len(input) {
				end = len(input)
			}
			byteChunks = append(byteChunks, input[i:end])
		}
		if got := collect(byteChunks); !reflect.DeepEqual(got, whole) {
			t.Errorf("byte chunking diverged for %q:\n got %#v\nwant %#v", input, got, whole)
		}
	}
}

func TestStreamExtractorFlushIsTerminal(t *testing.T) {
	e := NewStreamExtractor()
	e.Feed("some text")
	e.Flush()

	if got := e.Feed("more"); got != nil {
		t.Errorf("Feed after Flush: got %#v, want nil", got)
	}
	if got := e.Flush(); got != nil {
		t.Errorf("second Flush: got %#v, want nil", got)
	}
}

func TestStreamExtractorMultiplePayloadsInOneBlock(t *testing.T) {
	got := collect([]string{"```json\n{\"a\": 1}\n{\"b\": 2}\n```"})
	want := []Event{
		{Type: EventJSON, Value: map[string]interface{}{"a": float64(1)}},
		{Type: EventJSON, Value: map[string]interface{}{"b": float64(2)}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}
