package bisect

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/recollect/recollect/internal/model"
)

// --- Fakes ---

type fakeCatalog struct {
	mu    sync.Mutex
	recs  []*model.Recording
	err   error
	delay time.Duration
	calls map[string]int
}

func newFakeCatalog(recs ...*model.Recording) *fakeCatalog {
	c := &fakeCatalog{recs: recs, calls: map[string]int{}}
	sort.Slice(c.recs, func(i, j int) bool { return c.recs[i].BeginDate.Before(c.recs[j].BeginDate) })
	return c
}

func (c *fakeCatalog) enter(ctx context.Context, op string) error {
	c.mu.Lock()
	c.calls[op]++
	c.mu.Unlock()
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.err
}

func (c *fakeCatalog) callCount(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *fakeCatalog) EarliestBegin(ctx context.Context) (*time.Time, error) {
	if err := c.enter(ctx, "earliest"); err != nil {
		return nil, err
	}
	if len(c.recs) == 0 {
		return nil, nil
	}
	t := c.recs[0].BeginDate
	return &t, nil
}

func (c *fakeCatalog) LatestEnd(ctx context.Context) (*time.Time, error) {
	if err := c.enter(ctx, "latest"); err != nil {
		return nil, err
	}
	var out *time.Time
	for _, r := range c.recs {
		end := r.End()
		if out == nil || end.After(*out) {
			out = &end
		}
	}
	return out, nil
}

func (c *fakeCatalog) FindLatestBefore(ctx context.Context, ts time.Time) (*model.Recording, error) {
	if err := c.enter(ctx, "before"); err != nil {
		return nil, err
	}
	var out *model.Recording
	for _, r := range c.recs {
		if r.BeginDate.Before(ts) {
			out = r
		}
	}
	if out == nil {
		return nil, nil
	}
	cp := *out
	return &cp, nil
}

func (c *fakeCatalog) FindEarliestFrom(ctx context.Context, ts time.Time) (*model.Recording, error) {
	if err := c.enter(ctx, "from"); err != nil {
		return nil, err
	}
	for _, r := range c.recs {
		if !r.BeginDate.Before(ts) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

// brokenCatalog returns a recording that starts after the requested instant.
type brokenCatalog struct{ *fakeCatalog }

func (c *brokenCatalog) FindLatestBefore(_ context.Context, ts time.Time) (*model.Recording, error) {
	return &model.Recording{ID: "bad", BeginDate: ts.Add(time.Minute), AudioLength: model.Seconds(time.Hour)}, nil
}

func at(hhmmss string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", "2024-03-01 "+hhmmss)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func rec(id, begin string, length time.Duration) *model.Recording {
	return &model.Recording{ID: id, FilePath: id + ".opus", BeginDate: at(begin), AudioLength: model.Seconds(length)}
}

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }

func ptr[T any](v T) *T { return &v }

func zerologNop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
