// Package catalogsync keeps the recording catalog in step with the recordings
// directory and fills in content checksums.
package catalogsync

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/store"
)

// Result counts what one synchronization pass did.
type Result struct {
	Dir       string `json:"dir"`
	Inserted  int    `json:"inserted"`
	Unchanged int    `json:"unchanged"`
	Removed   int    `json:"removed"`
	// Skipped counts matching files that could not be probed.
	Skipped int `json:"skipped"`
}

// Syncer mirrors a directory of recordings into the catalog.
type Syncer struct {
	recs   store.Recordings
	prober Prober
	source string
	log    zerolog.Logger
}

func NewSyncer(recs store.Recordings, prober Prober, source string, log zerolog.Logger) *Syncer {
	return &Syncer{recs: recs, prober: prober, source: source, log: log}
}

// Sync removes catalog rows whose files have vanished, then inserts every
// recording file in dir that the catalog does not know yet. Paths are stored
// absolute.
func (s *Syncer) Sync(ctx context.Context, dir string) (Result, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Result{}, err
	}
	res := Result{Dir: abs}

	known, err := s.removeMissing(ctx, &res)
	if err != nil {
		return res, err
	}
	if err := s.addNew(ctx, abs, known, &res); err != nil {
		return res, err
	}
	s.log.Info().
		Str("dir", abs).
		Int("inserted", res.Inserted).
		Int("unchanged", res.Unchanged).
		Int("removed", res.Removed).
		Int("skipped", res.Skipped).
		Msg("catalog synchronized")
	return res, nil
}

func (s *Syncer) removeMissing(ctx context.Context, res *Result) (map[string]bool, error) {
	paths, err := s.recs.ListPaths(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p.FilePath); errors.Is(err, fs.ErrNotExist) {
			if err := s.recs.Delete(ctx, p.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
				return nil, err
			}
			s.log.Debug().Str("path", p.FilePath).Msg("recording removed")
			res.Removed++
			continue
		}
		known[p.FilePath] = true
	}
	return known, nil
}

func (s *Syncer) addNew(ctx context.Context, dir string, known map[string]bool, res *Result) error {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			if _, ok := ParseBeginDate(path); ok {
				files = append(files, path)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if known[path] {
			res.Unchanged++
			continue
		}
		inserted, err := s.addFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Str("path", path).Msg("skipping recording")
			res.Skipped++
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Unchanged++
		}
	}
	return nil
}

// addFile inserts one recording file. It reports false when the path is already catalogued.
func (s *Syncer) addFile(ctx context.Context, path string) (bool, error) {
	begin, _ := ParseBeginDate(path)
	length, err := s.prober.Duration(ctx, path)
	if err != nil {
		return false, err
	}
	r := &model.Recording{
		FilePath:    path,
		BeginDate:   begin,
		AudioLength: model.Seconds(length),
	}
	if s.source != "" {
		src := s.source
		r.Source = &src
	}
	if fi, err := os.Stat(path); err == nil {
		size := fi.Size()
		r.DiskUsage = &size
	}
	_, inserted, err := s.recs.Upsert(ctx, r)
	return inserted, err
}
