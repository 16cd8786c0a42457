package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ops-dashboard/internal/billing"
	"ops-dashboard/internal/calls"
	"ops-dashboard/internal/store"
	"ops-dashboard/internal/timewindow"
	"ops-dashboard/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const DefaultReadTimeout = 5 * time.Second

var (
	// ErrUpstreamUnavailable is returned only when every read failed.
	// Individual failures are folded into DashboardMetrics.Unavailable.
	ErrUpstreamUnavailable = errors.New("reporting: upstream unavailable")
	// ErrTimezoneUnavailable is fatal: every metric depends on correct windows.
	ErrTimezoneUnavailable = timewindow.ErrTimezoneUnavailable
)

// Observer receives one notification per assembled snapshot.
type Observer interface {
	ObserveAssembly(d time.Duration, unavailable []string)
}

type Options struct {
	// ReadTimeout bounds each upstream read independently.
	ReadTimeout time.Duration
	Policy      calls.Policy
	Observer    Observer
}

// Service assembles dashboard snapshots from the record store.
//
// It holds no per-request state; concurrent Assemble calls are independent.
type Service struct {
	store   store.Accessor
	windows *timewindow.Resolver
	opts    Options
}

func NewService(acc store.Accessor, windows *timewindow.Resolver, opts Options) *Service {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	return &Service{store: acc, windows: windows, opts: opts}
}

// reads holds the outcome of the upstream fan-out.
type reads struct {
	calls       []calls.Record
	jobs        []billing.Job
	invoices    []billing.Invoice
	payments    []billing.Payment
	outstanding []billing.Invoice

	callsErr, jobsErr, invoicesErr, paymentsErr, outstandingErr error
}

func (r reads) failures() []error {
	var out []error
	for _, err := range []error{r.callsErr, r.jobsErr, r.invoicesErr, r.paymentsErr, r.outstandingErr} {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// Assemble computes a fresh DashboardMetrics snapshot for now.
func (s *Service) Assemble(ctx context.Context, now time.Time) (DashboardMetrics, error) {
	start := time.Now()
	log := logger.From(ctx)

	if s.store == nil {
		return DashboardMetrics{}, errors.New("reporting: store not configured")
	}
	if s.windows == nil {
		return DashboardMetrics{}, ErrTimezoneUnavailable
	}
	wins, err := s.windows.Windows(now, timewindow.Kinds...)
	if err != nil {
		return DashboardMetrics{}, err
	}

	r := s.fetch(ctx, wins)
	if failed := r.failures(); len(failed) == 5 {
		log.Error("dashboard reads all failed", "err", errors.Join(failed...))
		return DashboardMetrics{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, errors.Join(failed...))
	}

	out := DashboardMetrics{Unavailable: []string{}, GeneratedAt: now.UTC()}

	if r.callsErr != nil {
		out.Unavailable = append(out.Unavailable, MetricToday)
		log.Warn("dashboard read failed", "metric", MetricToday, "err", r.callsErr)
	} else {
		counts := calls.Count(r.calls, s.opts.Policy)
		if counts.TestRecords > 0 || counts.NonVoice > 0 {
			log.Debug("calls skipped", "test_records", counts.TestRecords, "non_voice", counts.NonVoice)
		}
		out.Today = &counts
	}

	for _, f := range []struct {
		name string
		err  error
	}{
		{MetricJobRevenue, r.jobsErr},
		{MetricInvoicedAmount, r.invoicesErr},
		{MetricCollectedAmount, r.paymentsErr},
	} {
		if f.err != nil {
			out.Unavailable = append(out.Unavailable, f.name)
			log.Warn("dashboard read failed", "metric", f.name, "err", f.err)
		}
	}

	if u := CountUndated(r.jobs, r.invoices, r.payments); u.Total() > 0 {
		log.Warn("undated records skipped",
			"jobs", u.Jobs,
			"invoices", u.Invoices,
			"payments", u.Payments,
		)
	}

	for _, k := range timewindow.Kinds {
		sum, stats := Reconcile(wins[k], r.jobs, r.invoices, r.payments)
		if stats.Malformed() > 0 {
			log.Warn("malformed records in revenue window",
				"window", string(k),
				"null_job_revenue", stats.NullJobRevenue,
				"null_invoice_totals", stats.NullInvoiceTotals,
				"null_payment_amounts", stats.NullPaymentAmounts,
			)
		}
		if r.jobsErr != nil {
			sum.JobRevenue.Valid = false
		}
		if r.invoicesErr != nil {
			sum.InvoicedAmount.Valid = false
		}
		if r.paymentsErr != nil {
			sum.CollectedAmount.Valid = false
		}
		switch k {
		case timewindow.KindToday:
			out.Revenue.Today = sum
		case timewindow.KindThisWeek:
			out.Revenue.ThisWeek = sum
		case timewindow.KindThisMonth:
			out.Revenue.ThisMonth = sum
		case timewindow.KindLastMonth:
			out.Revenue.LastMonth = sum
		}
	}

	if r.outstandingErr != nil {
		out.Unavailable = append(out.Unavailable, MetricOutstanding)
		log.Warn("dashboard read failed", "metric", MetricOutstanding, "err", r.outstandingErr)
	} else {
		o := Outstanding(r.outstanding)
		out.Outstanding = &o
	}

	if s.opts.Observer != nil {
		s.opts.Observer.ObserveAssembly(time.Since(start), out.Unavailable)
	}
	return out, nil
}

// fetch issues the five independent reads concurrently. Failures are
// recorded per read and never cancel siblings.
func (s *Service) fetch(ctx context.Context, wins map[timewindow.Kind]timewindow.Window) reads {
	today := wins[timewindow.KindToday]
	span := today
	for _, w := range wins {
		span = span.Union(w)
	}

	var r reads
	var g errgroup.Group
	g.Go(func() error {
		r.calls, r.callsErr = readWithTimeout(ctx, s.opts.ReadTimeout, func(ctx context.Context) ([]calls.Record, error) {
			return s.store.QueryCalls(ctx, store.CallQuery{Window: &today, ExcludeTestIDs: true})
		})
		return nil
	})
	g.Go(func() error {
		r.jobs, r.jobsErr = readWithTimeout(ctx, s.opts.ReadTimeout, func(ctx context.Context) ([]billing.Job, error) {
			return s.store.QueryJobs(ctx, store.JobQuery{Window: &span, StatusIn: billing.ClosedJobStatuses})
		})
		return nil
	})
	g.Go(func() error {
		r.invoices, r.invoicesErr = readWithTimeout(ctx, s.opts.ReadTimeout, func(ctx context.Context) ([]billing.Invoice, error) {
			return s.store.QueryInvoices(ctx, store.InvoiceQuery{Window: &span})
		})
		return nil
	})
	g.Go(func() error {
		r.payments, r.paymentsErr = readWithTimeout(ctx, s.opts.ReadTimeout, func(ctx context.Context) ([]billing.Payment, error) {
			return s.store.QueryPayments(ctx, store.PaymentQuery{Window: &span})
		})
		return nil
	})
	g.Go(func() error {
		r.outstanding, r.outstandingErr = readWithTimeout(ctx, s.opts.ReadTimeout, func(ctx context.Context) ([]billing.Invoice, error) {
			return s.store.QueryInvoices(ctx, store.OutstandingInvoices())
		})
		return nil
	})
	_ = g.Wait()
	return r
}

// readWithTimeout runs fn under its own deadline and stops waiting once the
// deadline passes, even if fn ignores its context.
func readWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			var zero T
			return zero, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, res.err)
		}
		return res.v, nil
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, ctx.Err())
	}
}
