package bisect

import (
	"context"
	"fmt"
	"time"

	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/store"
)

// Strategy selects how the probe timestamp is placed inside the interval.
type Strategy string

const (
	// StrategyMidpoint probes the arithmetic midpoint of the interval.
	StrategyMidpoint Strategy = "midpoint"
	// StrategyCoverage probes the midpoint when a recording covers it and
	// otherwise moves to the nearest recorded instant inside the interval.
	StrategyCoverage Strategy = "coverage"
)

// ParseStrategy maps "" to the midpoint default.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case "", StrategyMidpoint:
		return StrategyMidpoint, nil
	case StrategyCoverage:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown probe strategy %q", model.ErrValidation, s)
}

// edgeInset keeps a snapped probe away from the very edge of a recording, so
// the strict begin-date lookup lands inside it.
const edgeInset = time.Second

// Midpoint returns lower + (upper-lower)/2.
func Midpoint(b Bounds) time.Time {
	return b.Lower.Add(b.Span() / 2)
}

// ProbeSelector chooses the next probe and packages it into a prompt.
type ProbeSelector struct {
	catalog  store.Catalog
	resolver *Resolver
	now      func() time.Time
}

func NewProbeSelector(catalog store.Catalog, resolver *Resolver, now func() time.Time) *ProbeSelector {
	if now == nil {
		now = time.Now
	}
	return &ProbeSelector{catalog: catalog, resolver: resolver, now: now}
}

// Prompt builds the prompt for b. A nil play request is not an error.
func (p *ProbeSelector) Prompt(ctx context.Context, b Bounds, strategy Strategy) (model.SearchPrompt, error) {
	ts := Midpoint(b)
	if strategy == StrategyCoverage {
		snapped, err := p.nearestCovered(ctx, b, ts)
		if err != nil {
			return model.SearchPrompt{}, err
		}
		ts = snapped
	}

	pr, err := p.resolver.Resolve(ctx, ts)
	if err != nil {
		return model.SearchPrompt{}, err
	}
	return model.SearchPrompt{
		Timestamp:         ts,
		PlayRequest:       pr,
		CurrentLowerBound: b.Lower,
		CurrentUpperBound: b.Upper,
		CreatedAt:         p.now().UTC(),
	}, nil
}

// nearestCovered returns mid when a recording covers it. Otherwise it returns the
// closest instant just inside the neighbouring recordings that is still strictly
// within (lower, upper), falling back to mid when there is none.
func (p *ProbeSelector) nearestCovered(ctx context.Context, b Bounds, mid time.Time) (time.Time, error) {
	prev, err := p.catalog.FindLatestBefore(ctx, mid)
	if err != nil {
		return mid, fmt.Errorf("find recording before %s: %w", mid.Format(time.RFC3339), err)
	}
	if prev != nil && prev.AudioLength > 0 && prev.Covers(mid) {
		return mid, nil
	}
	next, err := p.catalog.FindEarliestFrom(ctx, mid)
	if err != nil {
		return mid, fmt.Errorf("find recording from %s: %w", mid.Format(time.RFC3339), err)
	}
	if next != nil && next.BeginDate.Equal(mid) && next.AudioLength > 0 {
		return mid, nil
	}

	inside := func(ts time.Time) bool { return ts.After(b.Lower) && ts.Before(b.Upper) }
	var candidates []time.Time
	if prev != nil && prev.AudioLength > 0 && !prev.BeginDate.IsZero() {
		candidates = append(candidates, prev.End().Add(-inset(prev)))
	}
	if next != nil && next.AudioLength > 0 && !next.BeginDate.IsZero() {
		candidates = append(candidates, next.BeginDate.Add(inset(next)))
	}

	best, found := mid, false
	for _, c := range candidates {
		if !inside(c) {
			continue
		}
		if !found || absDuration(c.Sub(mid)) < absDuration(best.Sub(mid)) {
			best, found = c, true
		}
	}
	return best, nil
}

func inset(r *model.Recording) time.Duration {
	return min(edgeInset, r.AudioLength.Duration()/2)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
