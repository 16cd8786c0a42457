package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo stores events in webhook_events:
//
//	id UUID PK, source TEXT, type TEXT, external_id TEXT NULL,
//	outcome TEXT, payload JSONB NULL, received_at TIMESTAMPTZ
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const insertEventSQL = `
INSERT INTO webhook_events (id, source, type, external_id, outcome, payload, received_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
`

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	var payload any
	if len(e.Payload) > 0 {
		payload = []byte(e.Payload)
	}
	if _, err := r.db.ExecContext(ctx, insertEventSQL,
		e.ID, string(e.Source), e.Type, e.ExternalID, string(e.Outcome), payload, e.ReceivedAt,
	); err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

const recentEventsSQL = `
SELECT id, source, type, COALESCE(external_id, ''), outcome, payload, received_at
FROM webhook_events
WHERE ($1 = '' OR source = $1)
ORDER BY received_at DESC
LIMIT $2
`

func (r *PostgresRepo) Recent(ctx context.Context, source Source, limit int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, recentEventsSQL, string(source), limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e       Event
			src     string
			outcome string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &src, &e.Type, &e.ExternalID, &outcome, &payload, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Source = Source(src)
		e.Outcome = Outcome(outcome)
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}
