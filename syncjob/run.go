// Package syncjob wires and runs the catalog synchronization job.
package syncjob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/recollect/recollect/internal/catalogsync"
	"github.com/recollect/recollect/internal/config"
	"github.com/recollect/recollect/internal/factory"
	"github.com/recollect/recollect/internal/logger"
	"github.com/recollect/recollect/internal/store"
)

// Options are the command-line overrides of the job.
type Options struct {
	// Dir overrides RECOLLECT_RECORDINGS_DIR when set.
	Dir       string
	Watch     bool
	Checksums bool
	// Out receives the JSON summary of a single pass.
	Out io.Writer
}

// Run performs one sync pass, or keeps syncing when watching or polling is
// enabled, and blocks until shutdown or error.
func Run(opts Options) error {
	cfg, err := config.New()
	if err != nil {
		l := logger.New("catalog-sync")
		l.Error().Err(err).Msg("config")
		return err
	}
	log := logger.NewWithOptions("catalog-sync", logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := factory.NewStoreSync(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("store")
		return err
	}
	defer func() { _ = st.Close() }()

	w, err := newWorker(cfg, opts, st.Recordings(), log)
	if err != nil {
		return err
	}

	if !opts.Watch && cfg.SyncInterval() <= 0 {
		res, err := w.RunOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("catalog sync failed")
			return err
		}
		return writeResult(opts.Out, res)
	}

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("catalog sync worker exit")
		return err
	}
	return nil
}

func newWorker(cfg *config.Config, opts Options, recs store.Recordings, log zerolog.Logger) (*catalogsync.Worker, error) {
	dir := opts.Dir
	if dir == "" {
		dir = cfg.RecordingsDir
	}
	if dir == "" {
		return nil, fmt.Errorf("recordings directory required: set RECOLLECT_RECORDINGS_DIR or --dir")
	}
	syncer := catalogsync.NewSyncer(recs, catalogsync.FFprobe{Bin: cfg.FFprobePath}, cfg.RecordingSource, log)
	sums := catalogsync.NewChecksummer(recs, cfg.ChecksumWorkers, log)
	return catalogsync.NewWorker(syncer, sums, catalogsync.Config{
		Dir:       dir,
		Interval:  cfg.SyncInterval(),
		Watch:     opts.Watch,
		Debounce:  2 * time.Second,
		Checksums: opts.Checksums,
	}, log), nil
}

func writeResult(out io.Writer, res catalogsync.Result) error {
	if out == nil {
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
