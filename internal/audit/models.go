package audit

import (
	"encoding/json"
	"time"
)

// Event is an immutable record of one inbound integration event.
//
// Invariants:
// - Events are never updated or deleted.
// - Source and Type are required.
// - Payload is the raw body as received, for replay and debugging.
//
// Storage (Postgres): table webhook_events with an INSERT-only grant.
type Event struct {
	ID     string `json:"id"`
	Source Source `json:"source"`
	// Type is the provider's event name, e.g. "call.completed".
	Type string `json:"type"`
	// ExternalID is the provider's event id when it sends one.
	ExternalID string          `json:"externalId,omitempty"`
	Outcome    Outcome         `json:"outcome"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

type Source string

const (
	SourceOpenPhone Source = "openphone"
	SourceJobber    Source = "jobber"
)

type Outcome string

const (
	OutcomeStored  Outcome = "stored"
	OutcomeIgnored Outcome = "ignored"
	OutcomeFailed  Outcome = "failed"
)
