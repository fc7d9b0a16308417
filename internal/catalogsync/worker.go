package catalogsync

import (
	"context"
	"path/filepath"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Config controls what a Worker does and how often.
type Config struct {
	Dir string
	// Interval re-runs the pass periodically; zero disables polling.
	Interval time.Duration
	// Watch re-runs the pass on directory events.
	Watch bool
	// Debounce coalesces bursts of directory events.
	Debounce  time.Duration
	Checksums bool
	// MaxAttempts bounds retries of a failed pass in long-running mode.
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Worker runs sync (and optionally checksum) passes until its context ends.
type Worker struct {
	syncer *Syncer
	sums   *Checksummer
	cfg    Config
	log    zerolog.Logger
	pass   func(ctx context.Context) (Result, error)
}

func NewWorker(syncer *Syncer, sums *Checksummer, cfg Config, log zerolog.Logger) *Worker {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	w := &Worker{syncer: syncer, sums: sums, cfg: cfg, log: log}
	w.pass = w.RunOnce
	return w
}

// RunOnce performs a single sync pass followed by checksums when enabled.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	res, err := w.syncer.Sync(ctx, w.cfg.Dir)
	if err != nil {
		return res, err
	}
	if w.cfg.Checksums && w.sums != nil {
		if _, err := w.sums.Run(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Run performs an initial pass and then keeps going on ticks and, when
// watching, on file events, until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().
		Str("dir", w.cfg.Dir).
		Dur("interval", w.cfg.Interval).
		Bool("watch", w.cfg.Watch).
		Msg("catalog sync worker starting")

	if _, err := w.RunOnce(ctx); err != nil {
		return err
	}
	if w.cfg.Interval <= 0 && !w.cfg.Watch {
		return nil
	}

	var tick <-chan time.Time
	if w.cfg.Interval > 0 {
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var events <-chan struct{}
	if w.cfg.Watch {
		ch, err := Watch(ctx, w.cfg.Dir, w.cfg.Debounce, w.log)
		if err != nil {
			return err
		}
		events = ch
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("catalog sync worker stopping")
			return ctx.Err()
		case <-tick:
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
		}
		if _, err := w.passWithRetry(ctx); err != nil && ctx.Err() == nil {
			// The next trigger tries again.
			w.log.Error().Err(err).Msg("catalog sync pass failed")
		}
	}
}

// passWithRetry runs a pass, retrying failures with exponential backoff up to
// cfg.MaxAttempts times.
func (w *Worker) passWithRetry(ctx context.Context) (Result, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = w.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = w.cfg.MaxBackoff
	exp.Reset()

	attempts := 0
	for {
		res, err := w.pass(ctx)
		if err == nil {
			return res, nil
		}
		attempts++
		if attempts >= w.cfg.MaxAttempts || ctx.Err() != nil {
			return res, err
		}
		wait := exp.NextBackOff()
		w.log.Warn().Err(err).Int("attempt", attempts).Dur("retry_in", wait).Msg("catalog sync pass failed, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

// Watch emits one signal per debounced burst of create, remove or rename
// events for recording files in dir. The channel closes when ctx ends.
func Watch(ctx context.Context, dir string, debounce time.Duration, log zerolog.Logger) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if _, ok := ParseBeginDate(filepath.Base(ev.Name)); !ok {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("dir", dir).Msg("watch error")
			case <-fire:
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
