package telephony

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ops-dashboard/internal/calls"
)

// OpenPhone webhook event types handled by the ingestor.
const (
	EventCallCompleted       = "call.completed"
	EventMessageReceived     = "message.received"
	EventTranscriptCompleted = "call.transcript.completed"
)

var ErrMalformedEvent = errors.New("telephony: malformed event")

// Event is the OpenPhone webhook envelope. Data.Object is decoded lazily
// because its shape depends on Type.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	Data      struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CallObject is the payload of call.completed.
type CallObject struct {
	ID          string     `json:"id"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Direction   string     `json:"direction"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	AnsweredAt  *time.Time `json:"answeredAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Duration    *int       `json:"duration"`
}

// MessageObject is the payload of message.received.
type MessageObject struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// TranscriptObject is the payload of call.transcript.completed.
type TranscriptObject struct {
	CallID   string         `json:"callId"`
	Status   string         `json:"status"`
	Dialogue []DialogueTurn `json:"dialogue"`
}

type DialogueTurn struct {
	Identifier string  `json:"identifier"`
	Content    string  `json:"content"`
	Start      float64 `json:"start"`
}

func ParseEvent(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	return e, nil
}

func decodeObject[T any](e Event) (T, error) {
	var v T
	if len(e.Data.Object) == 0 {
		return v, fmt.Errorf("%w: %s without data.object", ErrMalformedEvent, e.Type)
	}
	if err := json.Unmarshal(e.Data.Object, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, e.Type, err)
	}
	return v, nil
}

// ToRecord maps a completed call. Duration falls back to the answered span
// when the provider omits it; unanswered calls get 0.
func (o CallObject) ToRecord() (calls.Record, error) {
	if o.ID == "" {
		return calls.Record{}, fmt.Errorf("%w: call without id", ErrMalformedEvent)
	}
	d := 0
	switch {
	case o.Duration != nil:
		d = *o.Duration
	case o.AnsweredAt != nil && o.CompletedAt != nil:
		d = int(o.CompletedAt.Sub(*o.AnsweredAt).Round(time.Second) / time.Second)
	}
	if d < 0 {
		d = 0
	}
	return calls.Record{
		ID:              o.ID,
		OccurredAt:      o.CreatedAt.UTC(),
		CallerNumber:    strings.TrimSpace(o.From),
		DurationSeconds: d,
	}, nil
}

// ToRecord maps an inbound SMS to a zero-duration record.
func (o MessageObject) ToRecord() (calls.Record, error) {
	if o.ID == "" {
		return calls.Record{}, fmt.Errorf("%w: message without id", ErrMalformedEvent)
	}
	return calls.Record{
		ID:           o.ID,
		OccurredAt:   o.CreatedAt.UTC(),
		CallerNumber: strings.TrimSpace(o.From),
	}, nil
}

// Text joins the dialogue into one speaker-prefixed line per turn.
func (o TranscriptObject) Text() string {
	var b strings.Builder
	for i, turn := range o.Dialogue {
		if i > 0 {
			b.WriteByte('\n')
		}
		if turn.Identifier != "" {
			b.WriteString(turn.Identifier)
			b.WriteString(": ")
		}
		b.WriteString(strings.TrimSpace(turn.Content))
	}
	return b.String()
}
