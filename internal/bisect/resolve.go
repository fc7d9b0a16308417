package bisect

import (
	"context"
	"fmt"
	"time"

	"github.com/recollect/recollect/internal/metrics"
	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/store"
)

// Resolver maps an absolute instant to a playable offset inside a recording.
type Resolver struct {
	catalog store.Catalog
}

func NewResolver(catalog store.Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve returns the play request for ts, or nil when no recording starts
// before it. The candidate is the recording with the greatest begin date
// strictly before ts. When that candidate ends at or before ts and another
// recording begins exactly at ts, the latter is used at offset zero.
//
// The returned request never carries a duration; snippet length is a playback
// concern.
func (r *Resolver) Resolve(ctx context.Context, ts time.Time) (*model.PlayRequest, error) {
	ts = ts.UTC()

	start := time.Now()
	rec, err := r.catalog.FindLatestBefore(ctx, ts)
	metrics.ObserveCatalogLookup("find_latest_before", start)
	if err != nil {
		return nil, fmt.Errorf("find recording before %s: %w", ts.Format(time.RFC3339), err)
	}
	if rec != nil && rec.BeginDate.After(ts) {
		return nil, &CatalogInvariantError{RecordingID: rec.ID, BeginDate: rec.BeginDate, Timestamp: ts}
	}

	if rec == nil || !rec.Covers(ts) {
		start = time.Now()
		next, err := r.catalog.FindEarliestFrom(ctx, ts)
		metrics.ObserveCatalogLookup("find_earliest_from", start)
		if err != nil {
			return nil, fmt.Errorf("find recording from %s: %w", ts.Format(time.RFC3339), err)
		}
		if next != nil && next.BeginDate.Equal(ts) && next.AudioLength > 0 {
			zero := model.Seconds(0)
			return &model.PlayRequest{RecordingID: next.ID, Offset: &zero}, nil
		}
	}

	if rec == nil || rec.ID == "" || rec.BeginDate.IsZero() || rec.AudioLength <= 0 {
		return nil, nil
	}
	offset := model.Seconds(ts.Sub(rec.BeginDate))
	return &model.PlayRequest{RecordingID: rec.ID, Offset: &offset}, nil
}
