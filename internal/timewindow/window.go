package timewindow

import (
	"errors"
	"fmt"
	"time"
)

// DefaultZone is the business calendar zone used for every dashboard period.
const DefaultZone = "America/New_York"

var (
	// ErrTimezoneUnavailable means the business zone could not be loaded.
	// There is no UTC fallback: a silent UTC day shifts "today" by hours.
	ErrTimezoneUnavailable = errors.New("timewindow: timezone unavailable")
	ErrUnknownKind         = errors.New("timewindow: unknown window kind")
)

type Kind string

const (
	KindToday     Kind = "today"
	KindThisWeek  Kind = "thisWeek"
	KindThisMonth Kind = "thisMonth"
	KindLastMonth Kind = "lastMonth"
)

// Kinds lists every supported kind in presentation order.
var Kinds = []Kind{KindToday, KindThisWeek, KindThisMonth, KindLastMonth}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Window is a half-open interval [Start, End) expressed in UTC.
type Window struct {
	Kind  Kind      `json:"kind"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Union returns the smallest window covering both w and o.
func (w Window) Union(o Window) Window {
	out := Window{Start: w.Start, End: w.End}
	if o.Start.Before(out.Start) {
		out.Start = o.Start
	}
	if o.End.After(out.End) {
		out.End = o.End
	}
	return out
}

// Resolver computes calendar windows in a fixed zone.
type Resolver struct {
	loc *time.Location
}

func NewResolver(zone string) (*Resolver, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTimezoneUnavailable, zone, err)
	}
	return &Resolver{loc: loc}, nil
}

// NewResolverIn wraps an already loaded location.
func NewResolverIn(loc *time.Location) (*Resolver, error) {
	if loc == nil {
		return nil, fmt.Errorf("%w: nil location", ErrTimezoneUnavailable)
	}
	return &Resolver{loc: loc}, nil
}

func (r *Resolver) Location() *time.Location {
	if r == nil {
		return nil
	}
	return r.loc
}

func (r *Resolver) WindowFor(kind Kind, now time.Time) (Window, error) {
	if r == nil || r.loc == nil {
		return Window{}, ErrTimezoneUnavailable
	}
	local := now.In(r.loc)
	y, m, d := local.Date()

	var start, end time.Time
	switch kind {
	case KindToday:
		start = time.Date(y, m, d, 0, 0, 0, 0, r.loc)
		end = start.Add(24 * time.Hour)
	case KindThisWeek:
		// Sunday (0) belongs to the week that started the prior Monday.
		offset := (int(local.Weekday()) + 6) % 7
		start = time.Date(y, m, d-offset, 0, 0, 0, 0, r.loc)
		end = start.Add(7 * 24 * time.Hour)
	case KindThisMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, r.loc)
		end = time.Date(y, m+1, 1, 0, 0, 0, 0, r.loc)
	case KindLastMonth:
		start = time.Date(y, m-1, 1, 0, 0, 0, 0, r.loc)
		end = time.Date(y, m, 1, 0, 0, 0, 0, r.loc)
	default:
		return Window{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return Window{Kind: kind, Start: start.UTC(), End: end.UTC()}, nil
}

// Windows resolves several kinds against the same instant.
func (r *Resolver) Windows(now time.Time, kinds ...Kind) (map[Kind]Window, error) {
	out := make(map[Kind]Window, len(kinds))
	for _, k := range kinds {
		w, err := r.WindowFor(k, now)
		if err != nil {
			return nil, err
		}
		out[k] = w
	}
	return out, nil
}
