package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// DoneSentinel is the protocol-level completion marker sent after the last
// real event of a turn, success or failure.
const DoneSentinel = "[DONE]"

// Format frames one payload as a Server-Sent-Events data line.
func Format(payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal sse payload: %w", err)
	}
	return fmt.Sprintf("data: %s\n\n", data), nil
}

// Writer frames payloads onto a buffered stream, flushing after every event
// so the client sees each one as it happens.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w *bufio.Writer) *Writer {
	return &Writer{w: w}
}

// Send writes one data event. Marshal failures are reported so the caller can
// substitute an error event; write failures mean the client went away.
func (s *Writer) Send(payload interface{}) error {
	frame, err := Format(payload)
	if err != nil {
		return err
	}
	if _, err := s.w.WriteString(frame); err != nil {
		return err
	}
	return s.w.Flush()
}

// SendDone writes the terminal sentinel line.
func (s *Writer) SendDone() error {
	if _, err := s.w.WriteString("data: " + DoneSentinel + "\n\n"); err != nil {
		return err
	}
	return s.w.Flush()
}
