package catalogsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/store"
)

// ChecksumResult counts what one checksum pass did.
type ChecksumResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Checksummer fills in sha256 sums for catalog rows that lack one.
type Checksummer struct {
	recs    store.Recordings
	workers int
	log     zerolog.Logger
}

func NewChecksummer(recs store.Recordings, workers int, log zerolog.Logger) *Checksummer {
	if workers < 1 {
		workers = 1
	}
	return &Checksummer{recs: recs, workers: workers, log: log}
}

// Run hashes every row missing a checksum. Files that no longer exist are skipped.
func (c *Checksummer) Run(ctx context.Context) (ChecksumResult, error) {
	rows, err := c.recs.ListMissingChecksum(ctx)
	if err != nil {
		return ChecksumResult{}, err
	}

	var added, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, row := range rows {
		row := row
		g.Go(func() error {
			sum, err := FileSHA256(row.FilePath)
			if errors.Is(err, fs.ErrNotExist) {
				skipped.Add(1)
				return nil
			}
			if err != nil {
				return err
			}
			if err := c.recs.SetChecksum(gctx, row.ID, sum); err != nil {
				if errors.Is(err, model.ErrNotFound) {
					// removed by a concurrent sync
					skipped.Add(1)
					return nil
				}
				return err
			}
			added.Add(1)
			return nil
		})
	}
	err = g.Wait()
	res := ChecksumResult{Added: int(added.Load()), Skipped: int(skipped.Load())}
	c.log.Info().Int("added", res.Added).Int("skipped", res.Skipped).Int("workers", c.workers).Msg("checksums computed")
	return res, err
}

// FileSHA256 returns the hex sha256 of a file's contents.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
