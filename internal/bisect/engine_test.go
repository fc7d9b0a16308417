package bisect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollect/recollect/internal/model"
)

func newTestEngine(cat *fakeCatalog, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = fixedNow(at("23:00:00"))
	}
	return New(cat, NewMemoryStore(), opts)
}

func TestScenarioA_NoBoundsUsesCatalogExtrema(t *testing.T) {
	cat := newFakeCatalog(rec("r1", "00:00:00", time.Hour), rec("r2", "01:00:00", time.Hour))
	e := newTestEngine(cat, Options{})
	ctx := context.Background()

	s, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, s.Status())

	p, err := e.NextPrompt(ctx, s.ID, "")
	require.NoError(t, err)
	assert.True(t, p.Timestamp.Equal(at("01:00:00")), "midpoint %v", p.Timestamp)
	assert.True(t, p.CurrentLowerBound.Equal(at("00:00:00")))
	assert.True(t, p.CurrentUpperBound.Equal(at("02:00:00")))
	require.NotNil(t, p.PlayRequest)
	assert.Equal(t, "r2", p.PlayRequest.RecordingID)
	require.NotNil(t, p.PlayRequest.Offset)
	assert.Equal(t, time.Duration(0), p.PlayRequest.Offset.Duration())
	assert.Nil(t, p.PlayRequest.Duration)
}

func TestScenarioB_AfterMovesLowerBound(t *testing.T) {
	cat := newFakeCatalog(rec("r1", "09:00:00", 2*time.Hour))
	e := newTestEngine(cat, Options{})
	ctx := context.Background()

	s, err := e.Create(ctx, CreateRequest{Lower: ptr(at("10:00:00")), Upper: ptr(at("10:10:00"))})
	require.NoError(t, err)

	p1, err := e.NextPrompt(ctx, s.ID, "")
	require.NoError(t, err)
	assert.True(t, p1.Timestamp.Equal(at("10:05:00")))

	_, err = e.Submit(ctx, s.ID, *p1, model.ResultAfter)
	require.NoError(t, err)

	p2, err := e.NextPrompt(ctx, s.ID, "")
	require.NoError(t, err)
	assert.True(t, p2.Timestamp.Equal(at("10:07:30")), "got %v", p2.Timestamp)
	assert.True(t, p2.CurrentLowerBound.Equal(at("10:05:00")))
	assert.True(t, p2.CurrentUpperBound.Equal(at("10:10:00")))
	require.NotNil(t, p2.PlayRequest)
	assert.Equal(t, 67*time.Minute+30*time.Second, p2.PlayRequest.Offset.Duration())

	// Bounds were supplied, so the catalog extrema were never needed.
	assert.Zero(t, cat.callCount("earliest"))
	assert.Zero(t, cat.callCount("latest"))
}

func TestScenarioC_TightestAfterWinsRegardlessOfOrder(t *testing.T) {
	cat := newFakeCatalog()
	e := newTestEngine(cat, Options{})
	ctx := context.Background()

	s, err := e.Create(ctx, CreateRequest{Lower: ptr(at("10:00:00")), Upper: ptr(at("10:10:00"))})
	require.NoError(t, err)

	_, err = e.Submit(ctx, s.ID, model.SearchPrompt{Timestamp: at("10:08:00")}, model.ResultAfter)
	require.NoError(t, err)
	_, err = e.Submit(ctx, s.ID, model.SearchPrompt{Timestamp: at("10:06:00")}, model.ResultAfter)
	require.NoError(t, err)

	p, err := e.NextPrompt(ctx, s.ID, "")
	require.NoError(t, err)
	assert.True(t, p.CurrentLowerBound.Equal(at("10:08:00")), "lower %v", p.CurrentLowerBound)
	assert.True(t, p.Timestamp.Equal(at("10:09:00")))
}

func TestScenarioD_EmptyCatalogWithoutBounds(t *testing.T) {
	now := at("23:00:00")
	e := newTestEngine(newFakeCatalog(), Options{Now: fixedNow(now)})
	ctx := context.Background()

	s, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	p, err := e.NextPrompt(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Nil(t, p.PlayRequest)
	assert.True(t, p.CurrentUpperBound.Equal(now))
	assert.True(t, p.CurrentLowerBound.Equal(now.Add(-DefaultSpan)))
	assert.True(t, p.Timestamp.Equal(now.Add(-DefaultSpan/2)))
}

func TestScenarioE_InvertedCreateBoundsRejected(t *testing.T) {
	e := newTestEngine(newFakeCatalog(), Options{})
	_, err := e.Create(context.Background(), CreateRequest{Lower: ptr(at("10:00:00")), Upper: ptr(at("09:00:00"))})
	require.ErrorIs(t, err, ErrInvalidBounds)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = e.Create(context.Background(), CreateRequest{Lower: ptr(at("10:00:00")), Upper: ptr(at("10:00:00"))})
	assert.ErrorIs(t, err, ErrInvalidBounds)

	list, err := e.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNextPrompt_Idempotent(t *testing.T) {
	cat := newFakeCatalog(rec("r1", "00:00:00", 3*time.Hour))
	e := newTestEngine(cat, Options{})
	ctx := context.Background()
	s, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	p1, err := e.NextPrompt(ctx, s.ID, "")
	require.NoError(t, err)
	p2, err := e.NextPrompt(ctx, s.ID, "")
	require.NoError(t, err)
	assert.True(t, p1.Timestamp.Equal(p2.Timestamp))
	assert.Equal(t, p1.PlayRequest, p2.PlayRequest)

	got, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Updates, "prompting must not touch history")
}

func TestBisection_MonotonicShrinkage(t *testing.T) {
	cat := newFakeCatalog(rec("r1", "00:00:00", 24*time.Hour-time.Second))
	e := newTestEngine(cat, Options{})
	ctx := context.Background()
	s, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	target := at("13:37:00")
	var lastLower, lastUpper time.Time
	for i := 0; i < 30; i++ {
		p, err := e.NextPrompt(ctx, s.ID, "")
		require.NoError(t, err)
		if i > 0 {
			assert.False(t, p.CurrentLowerBound.Before(lastLower), "lower regressed at step %d", i)
			assert.False(t, p.CurrentUpperBound.After(lastUpper), "upper grew at step %d", i)
		}
		assert.False(t, p.CurrentUpperBound.Before(p.CurrentLowerBound))
		lastLower, lastUpper = p.CurrentLowerBound, p.CurrentUpperBound

		result := model.ResultBefore
		if p.Timestamp.Before(target) {
			result = model.ResultAfter
		}
		_, err = e.Submit(ctx, s.ID, *p, result)
		require.NoError(t, err)

		if result == model.ResultAfter {
			assert.False(t, p.Timestamp.After(target))
		}
	}
	assert.Less(t, lastUpper.Sub(lastLower), 10*time.Second)
	assert.False(t, target.Before(lastLower))
	assert.False(t, target.After(lastUpper))
}

func TestSubmit_ExactCompletesSearch(t *testing.T) {
	e := newTestEngine(newFakeCatalog(rec("r1", "00:00:00", time.Hour)), Options{})
	ctx := context.Background()
	s, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	p, err := e.NextPrompt(ctx, s.ID, "")
	require.NoError(t, err)
	_, err = e.Submit(ctx, s.ID, *p, model.ResultBefore)
	require.NoError(t, err)

	p, err = e.NextPrompt(ctx, s.ID, "")
	require.NoError(t, err)
	got, err := e.Submit(ctx, s.ID, *p, model.ResultExact)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status())
	assert.Len(t, got.Updates, 2)

	_, err = e.NextPrompt(ctx, s.ID, "")
	assert.ErrorIs(t, err, ErrInactiveSearch)

	_, err = e.Submit(ctx, s.ID, *p, model.ResultAfter)
	assert.ErrorIs(t, err, ErrSearchCompleted)

	stored, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Updates, 2, "rejected update must not be appended")
	assert.Equal(t, model.StatusCompleted, stored.Status())
}

func TestSubmit_RejectsUnknownResult(t *testing.T) {
	e := newTestEngine(newFakeCatalog(), Options{})
	ctx := context.Background()
	s, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	_, err = e.Submit(ctx, s.ID, model.SearchPrompt{Timestamp: at("10:00:00")}, model.Result("longer"))
	require.ErrorIs(t, err, ErrInvalidResult)
	assert.ErrorIs(t, err, model.ErrValidation)

	got, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Updates)
}

func TestUnknownSearch(t *testing.T) {
	e := newTestEngine(newFakeCatalog(), Options{})
	ctx := context.Background()

	_, err := e.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSearchNotFound)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = e.NextPrompt(ctx, "missing", "")
	assert.ErrorIs(t, err, ErrSearchNotFound)
	_, err = e.Submit(ctx, "missing", model.SearchPrompt{}, model.ResultAfter)
	assert.ErrorIs(t, err, ErrSearchNotFound)
}

func TestSubmit_RejectsContradictoryFeedback(t *testing.T) {
	e := newTestEngine(newFakeCatalog(), Options{})
	ctx := context.Background()
	s, err := e.Create(ctx, CreateRequest{Lower: ptr(at("10:00:00")), Upper: ptr(at("11:00:00"))})
	require.NoError(t, err)

	_, err = e.Submit(ctx, s.ID, model.SearchPrompt{Timestamp: at("10:40:00")}, model.ResultAfter)
	require.NoError(t, err)
	_, err = e.Submit(ctx, s.ID, model.SearchPrompt{Timestamp: at("10:20:00")}, model.ResultBefore)
	assert.ErrorIs(t, err, ErrInvertedBounds)
	assert.ErrorIs(t, err, model.ErrConflict)

	got, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Updates, 1)
	assert.Equal(t, model.StatusActive, got.Status())

	// The search is still usable.
	p, err := e.NextPrompt(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, at("10:40:00"), p.CurrentLowerBound)
	assert.Equal(t, at("10:50:00"), p.Timestamp)

	done, err := e.Submit(ctx, s.ID, *p, model.ResultExact)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status())
}

func TestSubmit_RejectsFeedbackOutsideOriginalBounds(t *testing.T) {
	e := newTestEngine(newFakeCatalog(), Options{})
	ctx := context.Background()
	s, err := e.Create(ctx, CreateRequest{Lower: ptr(at("10:00:00")), Upper: ptr(at("11:00:00"))})
	require.NoError(t, err)

	_, err = e.Submit(ctx, s.ID, model.SearchPrompt{Timestamp: at("09:00:00")}, model.ResultBefore)
	assert.ErrorIs(t, err, ErrInvertedBounds)
	_, err = e.Submit(ctx, s.ID, model.SearchPrompt{Timestamp: at("12:00:00")}, model.ResultAfter)
	assert.ErrorIs(t, err, ErrInvertedBounds)

	// Equal bounds are a degenerate but consistent interval.
	_, err = e.Submit(ctx, s.ID, model.SearchPrompt{Timestamp: at("10:00:00")}, model.ResultBefore)
	assert.NoError(t, err)
}

func TestNextPrompt_InvertedHistoryIsReported(t *testing.T) {
	e := newTestEngine(newFakeCatalog(), Options{})
	ctx := context.Background()
	s, err := e.Create(ctx, CreateRequest{Lower: ptr(at("10:00:00")), Upper: ptr(at("11:00:00"))})
	require.NoError(t, err)

	// A history written by another process can still be inverted.
	stored, err := e.sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	stored.Append(model.SearchUpdate{Prompt: model.SearchPrompt{Timestamp: at("10:40:00")}, Result: model.ResultAfter})
	stored.Append(model.SearchUpdate{Prompt: model.SearchPrompt{Timestamp: at("10:20:00")}, Result: model.ResultBefore})
	require.NoError(t, e.sessions.Put(ctx, stored))

	_, err = e.NextPrompt(ctx, s.ID, "")
	assert.ErrorIs(t, err, ErrInvertedBounds)
}

func TestNextPrompt_CatalogFailurePropagates(t *testing.T) {
	cat := newFakeCatalog()
	cat.err = errors.New("connection refused")
	e := newTestEngine(cat, Options{})
	ctx := context.Background()
	s, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	_, err = e.NextPrompt(ctx, s.ID, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, cat.callCount("earliest"), "no internal retries")
}

func TestNextPrompt_CatalogTimeout(t *testing.T) {
	cat := newFakeCatalog(rec("r1", "00:00:00", time.Hour))
	cat.delay = time.Second
	e := newTestEngine(cat, Options{CatalogTimeout: 20 * time.Millisecond})
	ctx := context.Background()
	s, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	_, err = e.NextPrompt(ctx, s.ID, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestList_FiltersByStatus(t *testing.T) {
	e := newTestEngine(newFakeCatalog(), Options{})
	ctx := context.Background()
	a, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)
	b, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)
	_, err = e.Submit(ctx, b.ID, model.SearchPrompt{Timestamp: at("12:00:00")}, model.ResultExact)
	require.NoError(t, err)

	all, err := e.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := e.List(ctx, ptr(model.StatusActive))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	done, err := e.List(ctx, ptr(model.StatusCompleted))
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, b.ID, done[0].ID)
	assert.Equal(t, 1, done[0].Updates)
}

func TestSubmit_ConcurrentUpdatesAreAllRecorded(t *testing.T) {
	e := newTestEngine(newFakeCatalog(rec("r1", "00:00:00", 12*time.Hour)), Options{})
	ctx := context.Background()
	s, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = e.NextPrompt(ctx, s.ID, "")
			}
			ts := at("00:00:00").Add(time.Duration(i) * time.Minute)
			_, err := e.Submit(ctx, s.ID, model.SearchPrompt{Timestamp: ts}, model.ResultAfter)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Updates, n)
	assert.Empty(t, e.locks.locks, "per-search locks must be released")
}

func TestGet_ReturnsIsolatedCopy(t *testing.T) {
	e := newTestEngine(newFakeCatalog(), Options{})
	ctx := context.Background()
	s, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)
	_, err = e.Submit(ctx, s.ID, model.SearchPrompt{Timestamp: at("12:00:00")}, model.ResultAfter)
	require.NoError(t, err)

	got, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	got.Updates[0].Result = model.ResultExact
	got.Updates = append(got.Updates, model.SearchUpdate{Result: model.ResultExact})

	again, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, again.Updates, 1)
	assert.Equal(t, model.ResultAfter, again.Updates[0].Result)
	assert.Equal(t, model.StatusActive, again.Status())
}

func TestEvictIdle(t *testing.T) {
	now := at("12:00:00")
	clock := now
	e := New(newFakeCatalog(), NewMemoryStore(), Options{Now: func() time.Time { return clock }})
	ctx := context.Background()

	old, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)
	clock = now.Add(2 * time.Hour)
	fresh, err := e.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	r := NewReaper(e, time.Hour, *zerologNop())
	assert.Equal(t, 1, r.Sweep(ctx))

	_, err = e.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrSearchNotFound)
	_, err = e.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}
