package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// makeStore must return a clean, isolated store with the schema applied.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	recs := s.Recordings()

	if err := s.HealthPing(ctx); err != nil {
		t.Fatalf("HealthPing: %v", err)
	}

	// Empty catalog
	if got, err := recs.EarliestBegin(ctx); err != nil || got != nil {
		t.Fatalf("EarliestBegin on empty catalog: got=%v err=%v", got, err)
	}
	if got, err := recs.LatestEnd(ctx); err != nil || got != nil {
		t.Fatalf("LatestEnd on empty catalog: got=%v err=%v", got, err)
	}
	if got, err := recs.FindLatestBefore(ctx, time.Now()); err != nil || got != nil {
		t.Fatalf("FindLatestBefore on empty catalog: got=%v err=%v", got, err)
	}
	if sum, err := recs.Summary(ctx); err != nil || sum.NumberOfRecordings != 0 || sum.FirstRecordingBegin != nil {
		t.Fatalf("Summary on empty catalog: got=%+v err=%v", sum, err)
	}

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	source := "stationary"
	first := &model.Recording{FilePath: "2024-05-01_10-00-00.opus", BeginDate: base, AudioLength: model.Seconds(time.Hour), Source: &source}
	second := &model.Recording{FilePath: "2024-05-01_11-00-00.opus", BeginDate: base.Add(time.Hour), AudioLength: model.Seconds(30 * time.Minute), Source: &source}
	third := &model.Recording{FilePath: "2024-05-01_13-00-00.opus", BeginDate: base.Add(3 * time.Hour), AudioLength: model.Seconds(time.Hour)}

	var ids []string
	for _, r := range []*model.Recording{second, first, third} {
		out, inserted, err := recs.Upsert(ctx, r)
		if err != nil || !inserted || out == nil || out.ID == "" {
			t.Fatalf("Upsert %s: out=%v inserted=%v err=%v", r.FilePath, out, inserted, err)
		}
		ids = append(ids, out.ID)
	}

	// Upsert is keyed by file path and leaves the existing row alone
	dup, inserted, err := recs.Upsert(ctx, &model.Recording{FilePath: first.FilePath, BeginDate: base.Add(24 * time.Hour), AudioLength: model.Seconds(time.Second)})
	if err != nil || inserted {
		t.Fatalf("Upsert duplicate: inserted=%v err=%v", inserted, err)
	}
	if !dup.BeginDate.Equal(base) {
		t.Fatalf("Upsert duplicate overwrote begin date: %v", dup.BeginDate)
	}

	got, err := recs.GetByID(ctx, ids[0])
	if err != nil || got.FilePath != second.FilePath || !got.BeginDate.Equal(second.BeginDate) || got.AudioLength != second.AudioLength {
		t.Fatalf("GetByID: got=%+v err=%v", got, err)
	}
	if got.Source == nil || *got.Source != source {
		t.Fatalf("GetByID source: %v", got.Source)
	}
	if _, err := recs.GetByID(ctx, uuid.New().String()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByID unknown: want ErrNotFound, got %v", err)
	}

	// List is ordered by begin date and honours the filters
	all, err := recs.List(ctx, model.ListRecordingsRequest{})
	if err != nil || len(all) != 3 {
		t.Fatalf("List: n=%d err=%v", len(all), err)
	}
	if all[0].FilePath != first.FilePath || all[2].FilePath != third.FilePath {
		t.Fatalf("List order: %s, %s, %s", all[0].FilePath, all[1].FilePath, all[2].FilePath)
	}
	start := base.Add(time.Hour)
	if lst, err := recs.List(ctx, model.ListRecordingsRequest{Start: &start}); err != nil || len(lst) != 2 {
		t.Fatalf("List start: n=%d err=%v", len(lst), err)
	}
	if lst, err := recs.List(ctx, model.ListRecordingsRequest{End: &start}); err != nil || len(lst) != 2 {
		t.Fatalf("List end: n=%d err=%v", len(lst), err)
	}
	if lst, err := recs.List(ctx, model.ListRecordingsRequest{Start: &start, End: &start}); err != nil || len(lst) != 1 {
		t.Fatalf("List between: n=%d err=%v", len(lst), err)
	}

	// Extrema
	if eb, err := recs.EarliestBegin(ctx); err != nil || eb == nil || !eb.Equal(base) {
		t.Fatalf("EarliestBegin: got=%v err=%v", eb, err)
	}
	if le, err := recs.LatestEnd(ctx); err != nil || le == nil || !le.Equal(base.Add(4*time.Hour)) {
		t.Fatalf("LatestEnd: got=%v err=%v", le, err)
	}

	// Strictly-before lookup
	if r, err := recs.FindLatestBefore(ctx, base.Add(time.Hour)); err != nil || r == nil || r.FilePath != first.FilePath {
		t.Fatalf("FindLatestBefore at boundary: got=%v err=%v", r, err)
	}
	if r, err := recs.FindLatestBefore(ctx, base.Add(2*time.Hour)); err != nil || r == nil || r.FilePath != second.FilePath {
		t.Fatalf("FindLatestBefore in gap: got=%v err=%v", r, err)
	}
	if r, err := recs.FindLatestBefore(ctx, base); err != nil || r != nil {
		t.Fatalf("FindLatestBefore at first begin: got=%v err=%v", r, err)
	}
	if r, err := recs.FindEarliestFrom(ctx, base.Add(time.Hour)); err != nil || r == nil || r.FilePath != second.FilePath {
		t.Fatalf("FindEarliestFrom at boundary: got=%v err=%v", r, err)
	}
	if r, err := recs.FindEarliestFrom(ctx, base.Add(5*time.Hour)); err != nil || r != nil {
		t.Fatalf("FindEarliestFrom after last: got=%v err=%v", r, err)
	}

	// Summary
	sum, err := recs.Summary(ctx)
	if err != nil || sum.NumberOfRecordings != 3 {
		t.Fatalf("Summary: got=%+v err=%v", sum, err)
	}
	if sum.SumOfDurations == nil || sum.SumOfDurations.Duration() != 150*time.Minute {
		t.Fatalf("Summary durations: %v", sum.SumOfDurations)
	}
	if sum.LastRecordingBegin == nil || !sum.LastRecordingBegin.Equal(third.BeginDate) {
		t.Fatalf("Summary last begin: %v", sum.LastRecordingBegin)
	}

	// Checksums
	missing, err := recs.ListMissingChecksum(ctx)
	if err != nil || len(missing) != 3 {
		t.Fatalf("ListMissingChecksum: n=%d err=%v", len(missing), err)
	}
	if err := recs.SetChecksum(ctx, ids[0], "abc123"); err != nil {
		t.Fatalf("SetChecksum: %v", err)
	}
	if missing, err := recs.ListMissingChecksum(ctx); err != nil || len(missing) != 2 {
		t.Fatalf("ListMissingChecksum after set: n=%d err=%v", len(missing), err)
	}
	if err := recs.SetChecksum(ctx, uuid.New().String(), "x"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("SetChecksum unknown: want ErrNotFound, got %v", err)
	}

	// Delete
	if err := recs.Delete(ctx, ids[2]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if paths, err := recs.ListPaths(ctx); err != nil || len(paths) != 2 {
		t.Fatalf("ListPaths after delete: n=%d err=%v", len(paths), err)
	}
	if err := recs.Delete(ctx, ids[2]); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Delete twice: want ErrNotFound, got %v", err)
	}

	// Rows without a begin date or length are stored but never match time lookups
	if _, _, err := recs.Upsert(ctx, &model.Recording{FilePath: "broken.opus"}); err != nil {
		t.Fatalf("Upsert without timing: %v", err)
	}
	if r, err := recs.FindLatestBefore(ctx, base.Add(10*time.Hour)); err != nil || r == nil || r.FilePath != second.FilePath {
		t.Fatalf("FindLatestBefore ignores untimed rows: got=%v err=%v", r, err)
	}
}
