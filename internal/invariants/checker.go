// Package invariants checks search invariants through the public HTTP API only.
// It treats the service as an external system, so the same checks run against
// an in-process router in unit tests and against a deployed service.
package invariants

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollect/recollect/internal/client"
	"github.com/recollect/recollect/internal/model"
)

// InvariantChecker drives a recollect service through its REST client.
type InvariantChecker struct {
	client *client.Client
	// Lower and Upper bound every search the checker creates.
	Lower time.Time
	Upper time.Time
}

// NewInvariantChecker creates a checker against baseURL. Searches are bounded
// to one day starting at lower so results do not depend on catalog contents.
func NewInvariantChecker(t *testing.T, baseURL string, lower time.Time) *InvariantChecker {
	t.Helper()
	cli, err := client.New(baseURL, client.WithTimeout(30*time.Second))
	require.NoError(t, err)
	return &InvariantChecker{client: cli, Lower: lower.UTC(), Upper: lower.UTC().Add(24 * time.Hour)}
}

// RunAll runs every invariant as a subtest.
func (ic *InvariantChecker) RunAll(t *testing.T) {
	t.Run("BoundsOnlyShrink", ic.TestBoundsOnlyShrinkInvariant)
	t.Run("CompletedSearchIsFrozen", ic.TestCompletedSearchIsFrozenInvariant)
	t.Run("LongerIsNotAResult", ic.TestLongerIsNotAResultInvariant)
	t.Run("HistoryDeterminesPrompt", ic.TestHistoryDeterminesPromptInvariant)
}

func (ic *InvariantChecker) createSearch(t *testing.T) *model.Search {
	t.Helper()
	lower, upper := ic.Lower, ic.Upper
	s, err := ic.client.CreateSearch(context.Background(), client.CreateSearchRequest{Lower: &lower, Upper: &upper})
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, s.Status())
	return s
}

func (ic *InvariantChecker) prompt(t *testing.T, id string) *model.SearchPrompt {
	t.Helper()
	p, err := ic.client.NextPrompt(context.Background(), id, "")
	require.NoError(t, err)
	return p
}

// INVARIANT: each answer narrows the interval and the probe stays inside it.
func (ic *InvariantChecker) TestBoundsOnlyShrinkInvariant(t *testing.T) {
	ctx := context.Background()
	s := ic.createSearch(t)

	lower, upper := ic.Lower, ic.Upper
	answers := []model.Result{model.ResultBefore, model.ResultAfter, model.ResultAfter, model.ResultBefore, model.ResultAfter}
	for i, r := range answers {
		p := ic.prompt(t, s.ID)
		assert.False(t, p.CurrentLowerBound.Before(lower), "step %d: lower bound moved back", i)
		assert.False(t, p.CurrentUpperBound.After(upper), "step %d: upper bound moved forward", i)
		assert.False(t, p.Timestamp.Before(p.CurrentLowerBound), "step %d: probe below lower bound", i)
		assert.False(t, p.Timestamp.After(p.CurrentUpperBound), "step %d: probe above upper bound", i)

		before := p.CurrentUpperBound.Sub(p.CurrentLowerBound)
		lower, upper = p.CurrentLowerBound, p.CurrentUpperBound

		_, err := ic.client.Submit(ctx, s.ID, *p, r)
		require.NoError(t, err)

		next := ic.prompt(t, s.ID)
		after := next.CurrentUpperBound.Sub(next.CurrentLowerBound)
		assert.Less(t, after, before, "step %d: interval did not shrink", i)
	}
}

// INVARIANT: an exact answer completes the search and nothing changes it afterwards.
func (ic *InvariantChecker) TestCompletedSearchIsFrozenInvariant(t *testing.T) {
	ctx := context.Background()
	s := ic.createSearch(t)
	p := ic.prompt(t, s.ID)

	done, err := ic.client.Submit(ctx, s.ID, *p, model.ResultExact)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, done.Status())

	t.Run("UpdatesRejected", func(t *testing.T) {
		_, err := ic.client.Submit(ctx, s.ID, *p, model.ResultBefore)
		assert.ErrorIs(t, err, model.ErrConflict)
	})

	t.Run("PromptsRejected", func(t *testing.T) {
		_, err := ic.client.NextPrompt(ctx, s.ID, "")
		assert.ErrorIs(t, err, model.ErrConflict)
	})

	t.Run("HistoryUnchanged", func(t *testing.T) {
		got, err := ic.client.GetSearch(ctx, s.ID)
		require.NoError(t, err)
		assert.Len(t, got.Updates, 1)
		assert.Equal(t, model.StatusCompleted, got.Status())
	})
}

// INVARIANT: "longer" is a playback request, never a recorded result.
func (ic *InvariantChecker) TestLongerIsNotAResultInvariant(t *testing.T) {
	ctx := context.Background()
	s := ic.createSearch(t)
	p := ic.prompt(t, s.ID)

	_, err := ic.client.Submit(ctx, s.ID, *p, model.Result("longer"))
	assert.ErrorIs(t, err, model.ErrValidation)

	got, err := ic.client.GetSearch(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Updates)

	again := ic.prompt(t, s.ID)
	assert.True(t, again.Timestamp.Equal(p.Timestamp), "prompt changed without feedback")
}

// INVARIANT: the next prompt is a function of the bounds and the answer history.
func (ic *InvariantChecker) TestHistoryDeterminesPromptInvariant(t *testing.T) {
	ctx := context.Background()
	a, b := ic.createSearch(t), ic.createSearch(t)

	for _, r := range []model.Result{model.ResultAfter, model.ResultBefore} {
		pa, pb := ic.prompt(t, a.ID), ic.prompt(t, b.ID)
		require.True(t, pa.Timestamp.Equal(pb.Timestamp))
		_, err := ic.client.Submit(ctx, a.ID, *pa, r)
		require.NoError(t, err)
		_, err = ic.client.Submit(ctx, b.ID, *pb, r)
		require.NoError(t, err)
	}

	pa, pb := ic.prompt(t, a.ID), ic.prompt(t, b.ID)
	assert.True(t, pa.Timestamp.Equal(pb.Timestamp))
	assert.True(t, pa.CurrentLowerBound.Equal(pb.CurrentLowerBound))
	assert.True(t, pa.CurrentUpperBound.Equal(pb.CurrentUpperBound))
}
