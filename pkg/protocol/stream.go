// Package protocol defines the wire format of the storycast streaming API.
// This package is importable by clients that consume the NDJSON story stream.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ContentTypeStream is the Content-Type of a story stream response.
const ContentTypeStream = "application/json"

// ParagraphUnit is one speakable chunk of the assistant reply.
type ParagraphUnit struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Audio string `json:"audio,omitempty"` // data URI; absent when no synthesizer is configured
}

// StreamRecord is the unit written per line of a story stream.
// Progress records carry a paragraph; the terminal failure record carries
// a nil paragraph and the error message.
type StreamRecord struct {
	DialogHistory    DialogHistory  `json:"dialogHistory"`
	CurrentParagraph *ParagraphUnit `json:"currentParagraph"`
	Error            string         `json:"error,omitempty"`
}

// NewProgressRecord creates a progress record for the given paragraph.
func NewProgressRecord(history DialogHistory, p ParagraphUnit) StreamRecord {
	return StreamRecord{
		DialogHistory:    nonNil(history),
		CurrentParagraph: &p,
	}
}

// NewErrorRecord creates the terminal failure record.
func NewErrorRecord(history DialogHistory, message string) StreamRecord {
	if message == "" {
		message = "unknown error"
	}
	return StreamRecord{
		DialogHistory: nonNil(history),
		Error:         message,
	}
}

// IsTerminal reports whether the record signals a failed stream.
func (r StreamRecord) IsTerminal() bool {
	return r.CurrentParagraph == nil
}

func nonNil(h DialogHistory) DialogHistory {
	if h == nil {
		return DialogHistory{}
	}
	return h
}

// ErrStreamFailed wraps the message of a terminal record returned by ReadRecords.
var ErrStreamFailed = errors.New("stream failed")

// ReadRecords decodes newline-delimited records from r and calls fn for each.
// It stops at EOF, at the first fn error, or after a terminal record, in which
// case the returned error wraps ErrStreamFailed.
func ReadRecords(r io.Reader, fn func(StreamRecord) error) error {
	dec := json.NewDecoder(r)
	for {
		var rec StreamRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode stream record: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
		if rec.IsTerminal() {
			return fmt.Errorf("%w: %s", ErrStreamFailed, rec.Error)
		}
	}
}
