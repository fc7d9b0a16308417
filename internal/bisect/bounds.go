package bisect

import (
	"context"
	"fmt"
	"time"

	"github.com/recollect/recollect/internal/metrics"
	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/store"
)

// DefaultSpan is the interval used when neither the search nor the catalog
// provides a bound.
const DefaultSpan = 24 * time.Hour

// Bounds is the half-open interval [Lower, Upper) that still contains the target.
type Bounds struct {
	Lower time.Time
	Upper time.Time
}

// Span is Upper - Lower.
func (b Bounds) Span() time.Duration { return b.Upper.Sub(b.Lower) }

// LatestAfter returns the greatest prompt timestamp among "after" updates.
// Timestamps are compared directly, so submission order does not matter.
func LatestAfter(updates []model.SearchUpdate) *time.Time {
	var out *time.Time
	for i := range updates {
		u := &updates[i]
		if u.Result != model.ResultAfter {
			continue
		}
		if out == nil || u.Prompt.Timestamp.After(*out) {
			ts := u.Prompt.Timestamp
			out = &ts
		}
	}
	return out
}

// EarliestBefore returns the smallest prompt timestamp among "before" updates.
func EarliestBefore(updates []model.SearchUpdate) *time.Time {
	var out *time.Time
	for i := range updates {
		u := &updates[i]
		if u.Result != model.ResultBefore {
			continue
		}
		if out == nil || u.Prompt.Timestamp.Before(*out) {
			ts := u.Prompt.Timestamp
			out = &ts
		}
	}
	return out
}

// Inverts reports whether appending u to the history of s would leave the
// interval with upper < lower. Only feedback and the original bounds are
// consulted; catalog extrema are left to Bounds.
func Inverts(s *model.Search, u model.SearchUpdate) bool {
	if u.Result != model.ResultBefore && u.Result != model.ResultAfter {
		return false
	}
	updates := append(s.Updates[:len(s.Updates):len(s.Updates)], u)
	lower := LatestAfter(updates)
	if lower == nil {
		lower = s.OriginalLowerBound
	}
	upper := EarliestBefore(updates)
	if upper == nil {
		upper = s.OriginalUpperBound
	}
	return lower != nil && upper != nil && upper.Before(*lower)
}

// BoundTracker derives the current interval of a search from its history.
// It keeps no state between calls.
type BoundTracker struct {
	catalog store.Catalog
	now     func() time.Time
}

func NewBoundTracker(catalog store.Catalog, now func() time.Time) *BoundTracker {
	if now == nil {
		now = time.Now
	}
	return &BoundTracker{catalog: catalog, now: now}
}

// Bounds computes [lower, upper) for s. Feedback wins over the original bounds,
// which win over the catalog extrema. The catalog is only queried for a side
// that nothing else determines.
func (t *BoundTracker) Bounds(ctx context.Context, s *model.Search) (Bounds, error) {
	lower := LatestAfter(s.Updates)
	if lower == nil {
		lower = s.OriginalLowerBound
	}
	if lower == nil {
		start := time.Now()
		eb, err := t.catalog.EarliestBegin(ctx)
		metrics.ObserveCatalogLookup("earliest_begin", start)
		if err != nil {
			return Bounds{}, fmt.Errorf("earliest recording begin: %w", err)
		}
		lower = eb
	}

	upper := EarliestBefore(s.Updates)
	if upper == nil {
		upper = s.OriginalUpperBound
	}
	if upper == nil {
		start := time.Now()
		le, err := t.catalog.LatestEnd(ctx)
		metrics.ObserveCatalogLookup("latest_end", start)
		if err != nil {
			return Bounds{}, fmt.Errorf("latest recording end: %w", err)
		}
		upper = le
	}

	b := t.fillDefaults(lower, upper)
	if b.Upper.Before(b.Lower) {
		return b, ErrInvertedBounds
	}
	return b, nil
}

// fillDefaults is the last resort for an empty catalog: a DefaultSpan window
// ending now, anchored on whichever side is known.
func (t *BoundTracker) fillDefaults(lower, upper *time.Time) Bounds {
	now := t.now().UTC()
	switch {
	case lower == nil && upper == nil:
		return Bounds{Lower: now.Add(-DefaultSpan), Upper: now}
	case lower == nil:
		anchor := *upper
		if now.Before(anchor) {
			anchor = now
		}
		return Bounds{Lower: anchor.Add(-DefaultSpan), Upper: *upper}
	case upper == nil:
		end := now
		if end.Before(*lower) {
			end = lower.Add(DefaultSpan)
		}
		return Bounds{Lower: *lower, Upper: end}
	}
	return Bounds{Lower: *lower, Upper: *upper}
}
