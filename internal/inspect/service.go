// Package inspect lets an operator look at the raw rows behind the
// dashboard numbers.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ops-dashboard/internal/store"
	"ops-dashboard/internal/timewindow"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var ErrUnknownCollection = errors.New("inspect: unknown collection")

type Collection string

const (
	CollectionCalls    Collection = "calls"
	CollectionJobs     Collection = "jobs"
	CollectionInvoices Collection = "invoices"
	CollectionPayments Collection = "payments"
)

func ParseCollection(s string) (Collection, error) {
	switch c := Collection(s); c {
	case CollectionCalls, CollectionJobs, CollectionInvoices, CollectionPayments:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, s)
	}
}

type Query struct {
	Collection Collection
	// Window is optional; empty means unbounded.
	Window timewindow.Kind
	Limit  int
}

type Result struct {
	Collection Collection         `json:"collection"`
	Window     *timewindow.Window `json:"window,omitempty"`
	Count      int                `json:"count"`
	Rows       any                `json:"rows"`
}

type OutstandingCount struct {
	Count int `json:"count"`
}

// Service reads through the same accessor the dashboard uses, so what it
// shows is exactly what the aggregates saw.
type Service struct {
	store   store.Accessor
	windows *timewindow.Resolver
}

func NewService(acc store.Accessor, windows *timewindow.Resolver) *Service {
	return &Service{store: acc, windows: windows}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

func (s *Service) List(ctx context.Context, q Query, now time.Time) (Result, error) {
	res := Result{Collection: q.Collection}
	if q.Window != "" {
		w, err := s.windows.WindowFor(q.Window, now)
		if err != nil {
			return Result{}, err
		}
		res.Window = &w
	}
	limit := clampLimit(q.Limit)

	var (
		rows any
		n    int
		err  error
	)
	switch q.Collection {
	case CollectionCalls:
		rows, n, err = collect(s.store.QueryCalls(ctx, store.CallQuery{Window: res.Window, Limit: limit}))
	case CollectionJobs:
		rows, n, err = collect(s.store.QueryJobs(ctx, store.JobQuery{Window: res.Window, Limit: limit}))
	case CollectionInvoices:
		rows, n, err = collect(s.store.QueryInvoices(ctx, store.InvoiceQuery{Window: res.Window, Limit: limit}))
	case CollectionPayments:
		rows, n, err = collect(s.store.QueryPayments(ctx, store.PaymentQuery{Window: res.Window, Limit: limit}))
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownCollection, q.Collection)
	}
	if err != nil {
		return Result{}, err
	}
	res.Rows, res.Count = rows, n
	return res, nil
}

func collect[T any](rows []T, err error) (any, int, error) {
	if err != nil {
		return nil, 0, err
	}
	return rows, len(rows), nil
}

// Outstanding counts open receivables with the dashboard's filter.
func (s *Service) Outstanding(ctx context.Context) (OutstandingCount, error) {
	n, err := s.store.CountInvoices(ctx, store.OutstandingInvoices())
	if err != nil {
		return OutstandingCount{}, err
	}
	return OutstandingCount{Count: n}, nil
}
