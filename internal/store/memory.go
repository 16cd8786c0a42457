package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"ops-dashboard/internal/billing"
	"ops-dashboard/internal/calls"
	"ops-dashboard/internal/timewindow"
)

// MemoryStore is an in-memory Accessor for tests and local development.
// Filters follow the same semantics as PostgresStore.
type MemoryStore struct {
	mu sync.Mutex

	Calls    []calls.Record
	Jobs     []billing.Job
	Invoices []billing.Invoice
	Payments []billing.Payment
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

var (
	_ Accessor   = (*MemoryStore)(nil)
	_ CallWriter = (*MemoryStore)(nil)
)

func (s *MemoryStore) QueryCalls(ctx context.Context, q CallQuery) ([]calls.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calls.Record, 0)
	for _, c := range s.Calls {
		if !inWindow(q.Window, &c.OccurredAt) {
			continue
		}
		if q.ExcludeTestIDs && calls.IsTestRecord(c.ID) {
			continue
		}
		if c.DurationSeconds < q.MinDuration {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return limit(out, q.Limit), nil
}

func (s *MemoryStore) QueryJobs(ctx context.Context, q JobQuery) ([]billing.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]billing.Job, 0)
	for _, j := range s.Jobs {
		if q.Window != nil && !inWindow(q.Window, j.EndAt) {
			continue
		}
		if len(q.StatusIn) > 0 && !containsStatus(q.StatusIn, j.Status) {
			continue
		}
		out = append(out, j)
	}
	return limit(out, q.Limit), nil
}

func (s *MemoryStore) QueryInvoices(ctx context.Context, q InvoiceQuery) ([]billing.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return limit(s.filterInvoices(q), q.Limit), nil
}

func (s *MemoryStore) CountInvoices(ctx context.Context, q InvoiceQuery) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filterInvoices(q)), nil
}

func (s *MemoryStore) filterInvoices(q InvoiceQuery) []billing.Invoice {
	out := make([]billing.Invoice, 0)
	for _, inv := range s.Invoices {
		if q.Window != nil && !inWindow(q.Window, inv.IssuedAt) {
			continue
		}
		if len(q.StatusNotIn) > 0 && containsStatus(q.StatusNotIn, inv.Status) {
			continue
		}
		// NULL balance never satisfies a comparison, as in SQL.
		if q.BalanceGt != nil && (!inv.Balance.Valid || !inv.Balance.Decimal.GreaterThan(*q.BalanceGt)) {
			continue
		}
		out = append(out, inv)
	}
	return out
}

func (s *MemoryStore) QueryPayments(ctx context.Context, q PaymentQuery) ([]billing.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]billing.Payment, 0)
	for _, p := range s.Payments {
		if q.Window != nil && !inWindow(q.Window, p.PaidAt) {
			continue
		}
		out = append(out, p)
	}
	return limit(out, q.Limit), nil
}

func (s *MemoryStore) UpsertCall(ctx context.Context, r calls.Record) error {
	if r.ID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.Calls {
		if c.ID != r.ID {
			continue
		}
		c.OccurredAt = r.OccurredAt
		c.CallerNumber = r.CallerNumber
		c.DurationSeconds = r.DurationSeconds
		if r.Transcript != nil {
			c.Transcript = r.Transcript
		}
		s.Calls[i] = c
		return nil
	}
	s.Calls = append(s.Calls, r)
	return nil
}

func (s *MemoryStore) SetCallTranscript(ctx context.Context, callID, transcript string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Calls {
		if s.Calls[i].ID == callID {
			t := transcript
			s.Calls[i].Transcript = &t
			return nil
		}
	}
	return ErrNotFound
}

func inWindow(w *timewindow.Window, t *time.Time) bool {
	if w == nil {
		return true
	}
	if t == nil || t.IsZero() {
		return false
	}
	return w.Contains(*t)
}

func containsStatus[S ~string](set []S, s S) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func limit[T any](rows []T, n int) []T {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}
