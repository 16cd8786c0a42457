package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ops-dashboard/internal/billing"
	"ops-dashboard/internal/calls"
	"ops-dashboard/internal/timewindow"
)

// NOTE: PostgresStore assumes the tables maintained by the sync processes:
// - calls     (id PK, occurred_at, caller_number, duration, transcript, booked, emergency, pipeline_stage)
// - jobs      (id PK, job_number, status, revenue NUMERIC, start_at, end_at, client_id)
// - invoices  (id PK, invoice_number, status, issued_at, due_at, total NUMERIC, balance NUMERIC, job_id)
// - payments  (id PK, amount NUMERIC, paid_at, customer_id)
// All timestamps are TIMESTAMPTZ stored in UTC.

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var (
	_ Accessor   = (*PostgresStore)(nil)
	_ CallWriter = (*PostgresStore)(nil)
)

// where accumulates AND-ed predicates with positional parameters.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

func (w *where) window(column string, win *timewindow.Window) {
	if win == nil {
		return
	}
	w.add(column+" >= ?", win.Start)
	w.add(column+" < ?", win.End)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *where) limit(n int) string {
	if n <= 0 {
		return ""
	}
	w.args = append(w.args, n)
	return fmt.Sprintf("LIMIT $%d", len(w.args))
}

func (s *PostgresStore) QueryCalls(ctx context.Context, q CallQuery) ([]calls.Record, error) {
	var w where
	w.window("occurred_at", q.Window)
	if q.ExcludeTestIDs {
		w.add("id NOT LIKE 'test%' AND id NOT LIKE 'ACtest%'")
	}
	if q.MinDuration > 0 {
		w.add("duration >= ?", q.MinDuration)
	}
	query := fmt.Sprintf(`
SELECT id, occurred_at, caller_number, duration, transcript, booked, emergency, pipeline_stage
FROM calls
%s
ORDER BY occurred_at DESC, id
%s
`, w.String(), w.limit(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("store: query calls: %w", err)
	}
	defer rows.Close()

	out := make([]calls.Record, 0)
	for rows.Next() {
		var (
			r          calls.Record
			caller     sql.NullString
			transcript sql.NullString
			emergency  sql.NullBool
			stage      sql.NullString
		)
		if err := rows.Scan(
			&r.ID,
			&r.OccurredAt,
			&caller,
			&r.DurationSeconds,
			&transcript,
			&r.Booked,
			&emergency,
			&stage,
		); err != nil {
			return nil, fmt.Errorf("store: scan call: %w", err)
		}
		r.OccurredAt = r.OccurredAt.UTC()
		r.CallerNumber = caller.String
		if transcript.Valid {
			t := transcript.String
			r.Transcript = &t
		}
		if emergency.Valid {
			e := emergency.Bool
			r.Emergency = &e
		}
		r.Stage = calls.PipelineStage(stage.String)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) QueryJobs(ctx context.Context, q JobQuery) ([]billing.Job, error) {
	var w where
	w.window("end_at", q.Window)
	if len(q.StatusIn) > 0 {
		w.add("status = ANY(?)", toStrings(q.StatusIn))
	}
	query := fmt.Sprintf(`
SELECT id, job_number, status, revenue, start_at, end_at, client_id
FROM jobs
%s
ORDER BY end_at DESC NULLS LAST, id
%s
`, w.String(), w.limit(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("store: query jobs: %w", err)
	}
	defer rows.Close()

	out := make([]billing.Job, 0)
	for rows.Next() {
		var (
			j        billing.Job
			startAt  sql.NullTime
			endAt    sql.NullTime
			clientID sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.JobNumber, &j.Status, &j.Revenue, &startAt, &endAt, &clientID); err != nil {
			return nil, fmt.Errorf("store: scan job: %w", err)
		}
		j.StartAt = timePtr(startAt)
		j.EndAt = timePtr(endAt)
		j.ClientID = clientID.String
		out = append(out, j)
	}
	return out, rows.Err()
}

func invoiceWhere(q InvoiceQuery) *where {
	w := &where{}
	w.window("issued_at", q.Window)
	if len(q.StatusNotIn) > 0 {
		w.add("NOT (status = ANY(?))", toStrings(q.StatusNotIn))
	}
	if q.BalanceGt != nil {
		w.add("balance > ?", *q.BalanceGt)
	}
	return w
}

func (s *PostgresStore) QueryInvoices(ctx context.Context, q InvoiceQuery) ([]billing.Invoice, error) {
	w := invoiceWhere(q)
	query := fmt.Sprintf(`
SELECT id, invoice_number, status, issued_at, due_at, total, balance, job_id
FROM invoices
%s
ORDER BY issued_at DESC NULLS LAST, id
%s
`, w.String(), w.limit(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("store: query invoices: %w", err)
	}
	defer rows.Close()

	out := make([]billing.Invoice, 0)
	for rows.Next() {
		var (
			inv      billing.Invoice
			number   sql.NullString
			issuedAt sql.NullTime
			dueAt    sql.NullTime
			jobID    sql.NullString
		)
		if err := rows.Scan(&inv.ID, &number, &inv.Status, &issuedAt, &dueAt, &inv.Total, &inv.Balance, &jobID); err != nil {
			return nil, fmt.Errorf("store: scan invoice: %w", err)
		}
		inv.InvoiceNumber = number.String
		inv.IssuedAt = timePtr(issuedAt)
		inv.DueAt = timePtr(dueAt)
		inv.JobID = jobID.String
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountInvoices(ctx context.Context, q InvoiceQuery) (int, error) {
	w := invoiceWhere(q)
	query := "SELECT COUNT(*) FROM invoices " + w.String()
	var n int
	if err := s.db.QueryRowContext(ctx, query, w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count invoices: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) QueryPayments(ctx context.Context, q PaymentQuery) ([]billing.Payment, error) {
	var w where
	w.window("paid_at", q.Window)
	query := fmt.Sprintf(`
SELECT id, amount, paid_at, customer_id
FROM payments
%s
ORDER BY paid_at DESC NULLS LAST, id
%s
`, w.String(), w.limit(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("store: query payments: %w", err)
	}
	defer rows.Close()

	out := make([]billing.Payment, 0)
	for rows.Next() {
		var (
			p          billing.Payment
			paidAt     sql.NullTime
			customerID sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Amount, &paidAt, &customerID); err != nil {
			return nil, fmt.Errorf("store: scan payment: %w", err)
		}
		p.PaidAt = timePtr(paidAt)
		p.CustomerID = customerID.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertCall(ctx context.Context, r calls.Record) error {
	if r.ID == "" {
		return ErrInvalidArgument
	}
	// booked, emergency and pipeline_stage belong to operators; never overwritten here.
	const q = `
INSERT INTO calls (id, occurred_at, caller_number, duration, transcript, booked)
VALUES ($1, $2, $3, $4, $5, FALSE)
ON CONFLICT (id)
DO UPDATE SET occurred_at   = EXCLUDED.occurred_at,
              caller_number = EXCLUDED.caller_number,
              duration      = EXCLUDED.duration,
              transcript    = COALESCE(EXCLUDED.transcript, calls.transcript)
`
	var transcript sql.NullString
	if r.Transcript != nil {
		transcript = sql.NullString{String: *r.Transcript, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, q, r.ID, r.OccurredAt.UTC(), r.CallerNumber, r.DurationSeconds, transcript); err != nil {
		return fmt.Errorf("store: upsert call: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetCallTranscript(ctx context.Context, callID, transcript string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	const q = `UPDATE calls SET transcript = $2 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, callID, transcript)
	if err != nil {
		return fmt.Errorf("store: set transcript: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func toStrings[S ~string](in []S) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
