package store

import (
	"context"
	"errors"

	"ops-dashboard/internal/billing"
	"ops-dashboard/internal/calls"
	"ops-dashboard/internal/timewindow"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrInvalidArgument = errors.New("store: invalid argument")
)

// Accessor is the read contract the dashboard consumes.
//
// Rows are written by external sync processes; nothing behind this interface
// is mutated by reporting. A nil Window means unbounded.
type Accessor interface {
	QueryCalls(ctx context.Context, q CallQuery) ([]calls.Record, error)
	QueryJobs(ctx context.Context, q JobQuery) ([]billing.Job, error)
	QueryInvoices(ctx context.Context, q InvoiceQuery) ([]billing.Invoice, error)
	QueryPayments(ctx context.Context, q PaymentQuery) ([]billing.Payment, error)
	CountInvoices(ctx context.Context, q InvoiceQuery) (int, error)
}

// CallWriter is the narrow write side used by webhook ingestion.
type CallWriter interface {
	// UpsertCall inserts or refreshes provider-owned columns. Booked, emergency
	// and pipeline stage are left untouched on conflict.
	UpsertCall(ctx context.Context, r calls.Record) error
	SetCallTranscript(ctx context.Context, callID, transcript string) error
}

// CallQuery filters on occurred_at.
type CallQuery struct {
	Window         *timewindow.Window
	ExcludeTestIDs bool
	MinDuration    int
	Limit          int
}

// JobQuery filters on the job completion instant (end_at).
type JobQuery struct {
	Window   *timewindow.Window
	StatusIn []billing.JobStatus
	Limit    int
}

// InvoiceQuery filters on issued_at.
type InvoiceQuery struct {
	Window      *timewindow.Window
	StatusNotIn []billing.InvoiceStatus
	BalanceGt   *decimal.Decimal
	Limit       int
}

// PaymentQuery filters on paid_at.
type PaymentQuery struct {
	Window *timewindow.Window
	Limit  int
}

// OutstandingInvoices is the filter for open receivables.
func OutstandingInvoices() InvoiceQuery {
	zero := decimal.Zero
	return InvoiceQuery{
		StatusNotIn: []billing.InvoiceStatus{billing.InvoiceStatusPaid},
		BalanceGt:   &zero,
	}
}
