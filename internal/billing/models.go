package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Records in this package are written by the CRM sync and only read here.
//
// Money invariant: amounts are exact decimals. A NULL column arrives as an
// invalid NullDecimal and counts as zero in every aggregate; the row itself is
// never dropped.

type JobStatus string

const (
	JobStatusDraft           JobStatus = "draft"
	JobStatusNeedsScheduling JobStatus = "needs_scheduling"
	JobStatusScheduled       JobStatus = "scheduled"
	JobStatusActive          JobStatus = "active"
	JobStatusInvoicing       JobStatus = "invoicing"
	JobStatusComplete        JobStatus = "complete"
	JobStatusArchived        JobStatus = "archived"
	JobStatusCancelled       JobStatus = "cancelled"
)

// ClosedJobStatuses is the canonical set of statuses that count as finished work.
var ClosedJobStatuses = []JobStatus{JobStatusComplete, JobStatusArchived}

func (s JobStatus) Closed() bool {
	for _, c := range ClosedJobStatuses {
		if s == c {
			return true
		}
	}
	return false
}

type Job struct {
	ID        string              `json:"id" db:"id"`
	JobNumber int                 `json:"jobNumber" db:"job_number"`
	Status    JobStatus           `json:"status" db:"status"`
	Revenue   decimal.NullDecimal `json:"revenue" db:"revenue"`
	StartAt   *time.Time          `json:"startAt,omitempty" db:"start_at"`
	// EndAt is the completion instant; open jobs have none.
	EndAt    *time.Time `json:"endAt,omitempty" db:"end_at"`
	ClientID string     `json:"clientId,omitempty" db:"client_id"`
}

type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "draft"
	InvoiceStatusSent     InvoiceStatus = "sent"
	InvoiceStatusViewed   InvoiceStatus = "viewed"
	InvoiceStatusApproved InvoiceStatus = "approved"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusBadDebt  InvoiceStatus = "bad_debt"
)

type Invoice struct {
	ID            string              `json:"id" db:"id"`
	InvoiceNumber string              `json:"invoiceNumber" db:"invoice_number"`
	Status        InvoiceStatus       `json:"status" db:"status"`
	IssuedAt      *time.Time          `json:"issuedAt,omitempty" db:"issued_at"`
	DueAt         *time.Time          `json:"dueAt,omitempty" db:"due_at"`
	Total         decimal.NullDecimal `json:"total" db:"total"`
	// Balance is what is still owed; zero once fully paid.
	Balance decimal.NullDecimal `json:"balance" db:"balance"`
	JobID   string              `json:"jobId,omitempty" db:"job_id"`
}

type Payment struct {
	ID         string              `json:"id" db:"id"`
	Amount     decimal.NullDecimal `json:"amount" db:"amount"`
	PaidAt     *time.Time          `json:"paidAt,omitempty" db:"paid_at"`
	CustomerID string              `json:"customerId,omitempty" db:"customer_id"`
}

// OrZero returns the decimal value, or zero for NULL.
func OrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
