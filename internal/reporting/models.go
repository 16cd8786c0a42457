package reporting

import (
	"time"

	"ops-dashboard/internal/calls"

	"github.com/shopspring/decimal"
)

// RevenueSummary carries three distinct business facts for one period:
// work completed, work billed, and cash received. They legitimately diverge
// and are never forced to agree.
//
// A field is null when its source could not be read.
type RevenueSummary struct {
	JobRevenue      decimal.NullDecimal `json:"jobRevenue"`
	InvoicedAmount  decimal.NullDecimal `json:"invoicedAmount"`
	CollectedAmount decimal.NullDecimal `json:"collectedAmount"`
}

type RevenueByPeriod struct {
	Today     RevenueSummary `json:"today"`
	ThisWeek  RevenueSummary `json:"thisWeek"`
	ThisMonth RevenueSummary `json:"thisMonth"`
	LastMonth RevenueSummary `json:"lastMonth"`
}

// OutstandingSummary is a point-in-time receivables snapshot.
type OutstandingSummary struct {
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
	Count            int             `json:"count"`
}

// DashboardMetrics is recomputed on every request and never persisted.
//
// Today and Outstanding are nil when their reads failed; Unavailable names
// every metric that could not be computed so a UI can tell "zero" from
// "unknown".
type DashboardMetrics struct {
	Today       *calls.Counts       `json:"today"`
	Revenue     RevenueByPeriod     `json:"revenue"`
	Outstanding *OutstandingSummary `json:"outstanding"`
	Unavailable []string            `json:"unavailable"`
	GeneratedAt time.Time           `json:"generatedAt"`
}

// Metric names reported in DashboardMetrics.Unavailable, in reporting order.
const (
	MetricToday           = "today"
	MetricJobRevenue      = "revenue.jobRevenue"
	MetricInvoicedAmount  = "revenue.invoicedAmount"
	MetricCollectedAmount = "revenue.collectedAmount"
	MetricOutstanding     = "outstanding"
)

// ReconcileStats counts the rows behind a RevenueSummary. Rows with NULL
// amounts still count; they contribute zero.
type ReconcileStats struct {
	Jobs     int
	Invoices int
	Payments int

	NullJobRevenue     int
	NullInvoiceTotals  int
	NullPaymentAmounts int
}

func (s ReconcileStats) Malformed() int {
	return s.NullJobRevenue + s.NullInvoiceTotals + s.NullPaymentAmounts
}

// UndatedCounts counts rows whose date column is missing. They cannot be
// placed in any window, so they are counted once per snapshot.
type UndatedCounts struct {
	Jobs     int
	Invoices int
	Payments int
}

func (u UndatedCounts) Total() int { return u.Jobs + u.Invoices + u.Payments }
