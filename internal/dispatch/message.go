package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	fwerrors "github.com/conneroisu/fwif/internal/errors"
	"github.com/conneroisu/fwif/internal/keys"
)

// EventKind classifies a decoded inbound message.
type EventKind int

const (
	// EventUnknown is a well-formed message with no recognized field.
	EventUnknown EventKind = iota
	// EventKey carries one pressed key.
	EventKey
	// EventExpose asks for the view to be redrawn.
	EventExpose
)

// String returns the string representation of the event kind
func (k EventKind) String() string {
	switch k {
	case EventKey:
		return "key"
	case EventExpose:
		return "expose"
	default:
		return "unknown"
	}
}

// Event is one decoded inbound message.
type Event struct {
	Kind EventKind
	Key  keys.Key
}

// inbound is the renderer's message shape. Digit keys may arrive as JSON
// numbers, so Key stays raw until decoded.
type inbound struct {
	Key    json.RawMessage `json:"key"`
	Ctrl   bool            `json:"ctrl"`
	Alt    bool            `json:"alt"`
	Shift  bool            `json:"shift"`
	Expose bool            `json:"expose"`
}

// Decode interprets one received chunk. A chunk may hold several
// concatenated JSON objects; they are returned in order. On malformed input
// the events decoded before the fault are returned with a decode error.
func Decode(chunk []byte) ([]Event, error) {
	dec := json.NewDecoder(bytes.NewReader(chunk))
	dec.UseNumber()

	var events []Event
	for {
		var msg inbound
		err := dec.Decode(&msg)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, fwerrors.NewDecodeError("malformed message", err).
				WithContext("offset", dec.InputOffset())
		}

		event, err := msg.event()
		if err != nil {
			return events, fwerrors.NewDecodeError("malformed key", err)
		}
		events = append(events, event)
	}
}

func (m inbound) event() (Event, error) {
	if len(m.Key) > 0 && !bytes.Equal(m.Key, []byte("null")) {
		key, err := decodeKey(m.Key)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Kind: EventKey,
			Key:  keys.WithModifiers(key, m.Ctrl, m.Alt, m.Shift),
		}, nil
	}
	if m.Expose {
		return Event{Kind: EventExpose}, nil
	}

	return Event{Kind: EventUnknown}, nil
}

func decodeKey(raw json.RawMessage) (keys.Key, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		key := keys.NormalizeKey(text)
		if key == "" {
			return "", fmt.Errorf("empty key")
		}
		return key, nil
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		if _, err := number.Int64(); err != nil {
			return "", fmt.Errorf("key %s is not an integer", number)
		}
		return keys.Key(number.String()), nil
	}

	return "", fmt.Errorf("key must be a string or a number, got %s", raw)
}
