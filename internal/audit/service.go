package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only; there are no Update or Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
	Recent(ctx context.Context, source Source, limit int) ([]Event, error)
}

// Service records inbound integration events.
//
// Callers treat audit logging as best-effort: a failed append is logged,
// never surfaced to the webhook sender.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var (
	ErrInvalidEvent  = errors.New("audit: invalid event")
	errNotConfigured = errors.New("audit: repository not configured")
)

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errNotConfigured
	}
	if e.Source == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = s.clock().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeStored
	}
	return s.repo.Append(ctx, e)
}

// LogWebhook records one webhook delivery with its raw body.
func (s *Service) LogWebhook(ctx context.Context, source Source, eventType, externalID string, outcome Outcome, payload []byte) error {
	return s.Append(ctx, Event{
		Source:     source,
		Type:       eventType,
		ExternalID: externalID,
		Outcome:    outcome,
		Payload:    payload,
	})
}

// Recent returns the newest events for source, newest first.
func (s *Service) Recent(ctx context.Context, source Source, limit int) ([]Event, error) {
	if s == nil || s.repo == nil {
		return nil, errNotConfigured
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.Recent(ctx, source, limit)
}
