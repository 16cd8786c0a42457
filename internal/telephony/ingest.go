package telephony

import (
	"context"
	"errors"
	"fmt"

	"ops-dashboard/internal/audit"
	"ops-dashboard/internal/calls"
	"ops-dashboard/internal/store"
	"ops-dashboard/pkg/logger"
)

// ErrCallNotStored means a transcript arrived before its call. OpenPhone
// retries non-2xx deliveries, so the handler answers 409 and waits.
var ErrCallNotStored = errors.New("telephony: transcript for unknown call")

// Observer counts webhook outcomes.
type Observer interface {
	ObserveWebhook(source, eventType, outcome string)
}

// Ingestor turns OpenPhone events into call records.
type Ingestor struct {
	calls    store.CallWriter
	audit    *audit.Service
	observer Observer
}

func NewIngestor(w store.CallWriter, a *audit.Service, o Observer) *Ingestor {
	return &Ingestor{calls: w, audit: a, observer: o}
}

// Ingest applies one event and records it in the audit log. Unknown event
// types are acknowledged with OutcomeIgnored.
func (in *Ingestor) Ingest(ctx context.Context, e Event, raw []byte) (audit.Outcome, error) {
	outcome, err := in.apply(ctx, e)
	if err != nil && !errors.Is(err, ErrCallNotStored) {
		outcome = audit.OutcomeFailed
	}

	if in.observer != nil {
		in.observer.ObserveWebhook(string(audit.SourceOpenPhone), e.Type, string(outcome))
	}
	if aerr := in.audit.LogWebhook(ctx, audit.SourceOpenPhone, e.Type, e.ID, outcome, raw); aerr != nil {
		logger.From(ctx).Warn("webhook audit append failed", "event_id", e.ID, "err", aerr)
	}
	return outcome, err
}

func (in *Ingestor) apply(ctx context.Context, e Event) (audit.Outcome, error) {
	switch e.Type {
	case EventCallCompleted:
		obj, err := decodeObject[CallObject](e)
		if err != nil {
			return "", err
		}
		rec, err := obj.ToRecord()
		if err != nil {
			return "", err
		}
		stampIfMissing(&rec, e)
		if err := in.calls.UpsertCall(ctx, rec); err != nil {
			return "", fmt.Errorf("telephony: store call %s: %w", rec.ID, err)
		}
		return audit.OutcomeStored, nil

	case EventMessageReceived:
		obj, err := decodeObject[MessageObject](e)
		if err != nil {
			return "", err
		}
		rec, err := obj.ToRecord()
		if err != nil {
			return "", err
		}
		stampIfMissing(&rec, e)
		if err := in.calls.UpsertCall(ctx, rec); err != nil {
			return "", fmt.Errorf("telephony: store message %s: %w", rec.ID, err)
		}
		return audit.OutcomeStored, nil

	case EventTranscriptCompleted:
		obj, err := decodeObject[TranscriptObject](e)
		if err != nil {
			return "", err
		}
		if obj.CallID == "" {
			return "", fmt.Errorf("%w: transcript without callId", ErrMalformedEvent)
		}
		err = in.calls.SetCallTranscript(ctx, obj.CallID, obj.Text())
		if store.IsNotFound(err) {
			return audit.OutcomeIgnored, ErrCallNotStored
		}
		if err != nil {
			return "", fmt.Errorf("telephony: store transcript %s: %w", obj.CallID, err)
		}
		return audit.OutcomeStored, nil

	default:
		return audit.OutcomeIgnored, nil
	}
}

func stampIfMissing(rec *calls.Record, e Event) {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = e.CreatedAt.UTC()
	}
}
