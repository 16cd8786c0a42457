package reporting

import (
	"time"

	"ops-dashboard/internal/billing"
	"ops-dashboard/internal/timewindow"

	"github.com/shopspring/decimal"
)

// Reconcile computes the three revenue figures for one window.
//
//   - jobRevenue: closed jobs (complete, archived) whose end falls in the window
//   - invoicedAmount: invoices issued in the window, whatever their payment state
//   - collectedAmount: payments dated in the window
//
// Rows outside the window or without a date are ignored, so callers may pass a
// superset. CountUndated reports the latter.
func Reconcile(w timewindow.Window, jobs []billing.Job, invoices []billing.Invoice, payments []billing.Payment) (RevenueSummary, ReconcileStats) {
	var stats ReconcileStats
	jobRevenue := decimal.Zero
	invoiced := decimal.Zero
	collected := decimal.Zero

	for _, j := range jobs {
		if !j.Status.Closed() {
			continue
		}
		if !inWindow(w, j.EndAt) {
			continue
		}
		stats.Jobs++
		if !j.Revenue.Valid {
			stats.NullJobRevenue++
		}
		jobRevenue = jobRevenue.Add(billing.OrZero(j.Revenue))
	}

	for _, inv := range invoices {
		if !inWindow(w, inv.IssuedAt) {
			continue
		}
		stats.Invoices++
		if !inv.Total.Valid {
			stats.NullInvoiceTotals++
		}
		invoiced = invoiced.Add(billing.OrZero(inv.Total))
	}

	for _, p := range payments {
		if !inWindow(w, p.PaidAt) {
			continue
		}
		stats.Payments++
		if !p.Amount.Valid {
			stats.NullPaymentAmounts++
		}
		collected = collected.Add(billing.OrZero(p.Amount))
	}

	return RevenueSummary{
		JobRevenue:      decimal.NewNullDecimal(jobRevenue),
		InvoicedAmount:  decimal.NewNullDecimal(invoiced),
		CollectedAmount: decimal.NewNullDecimal(collected),
	}, stats
}

func inWindow(w timewindow.Window, t *time.Time) bool {
	return t != nil && w.Contains(*t)
}

// CountUndated counts the rows Reconcile can never place: closed jobs without
// an end time, invoices without an issue date, payments without a date.
func CountUndated(jobs []billing.Job, invoices []billing.Invoice, payments []billing.Payment) UndatedCounts {
	var out UndatedCounts
	for _, j := range jobs {
		if j.Status.Closed() && j.EndAt == nil {
			out.Jobs++
		}
	}
	for _, inv := range invoices {
		if inv.IssuedAt == nil {
			out.Invoices++
		}
	}
	for _, p := range payments {
		if p.PaidAt == nil {
			out.Payments++
		}
	}
	return out
}

// Outstanding sums open receivables. Only invoices that are not paid AND still
// carry a positive balance count: a zero-balance invoice in any other status
// (voided, written down) is excluded.
func Outstanding(invoices []billing.Invoice) OutstandingSummary {
	out := OutstandingSummary{TotalOutstanding: decimal.Zero}
	for _, inv := range invoices {
		if inv.Status == billing.InvoiceStatusPaid {
			continue
		}
		bal := billing.OrZero(inv.Balance)
		if !bal.IsPositive() {
			continue
		}
		out.TotalOutstanding = out.TotalOutstanding.Add(bal)
		out.Count++
	}
	return out
}
