// Package bisect implements the interactive bisection search that narrows a
// time interval of the recording archive from before/after/exact feedback.
package bisect

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/recollect/recollect/internal/metrics"
	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/store"
)

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	// Strategy is used when a prompt request does not name one.
	Strategy Strategy
	// CatalogTimeout bounds the catalog lookups behind one prompt. Zero disables it.
	CatalogTimeout time.Duration
	Now            func() time.Time
	NewID          func() string
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

// CreateRequest carries the optional inputs of a new search.
type CreateRequest struct {
	Duration *model.Seconds
	Lower    *time.Time
	Upper    *time.Time
}

// Engine owns the search lifecycle. All operations on one search id are
// serialized; different ids proceed in parallel.
type Engine struct {
	sessions       SessionStore
	tracker        *BoundTracker
	selector       *ProbeSelector
	strategy       Strategy
	catalogTimeout time.Duration
	now            func() time.Time
	newID          func() string
	log            zerolog.Logger
	locks          *keyedMutex
}

func New(catalog store.Catalog, sessions SessionStore, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyMidpoint
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	resolver := NewResolver(catalog)
	return &Engine{
		sessions:       sessions,
		tracker:        NewBoundTracker(catalog, opts.Now),
		selector:       NewProbeSelector(catalog, resolver, opts.Now),
		strategy:       opts.Strategy,
		catalogTimeout: opts.CatalogTimeout,
		now:            opts.Now,
		newID:          opts.NewID,
		log:            log,
		locks:          newKeyedMutex(),
	}
}

// Create registers a new active search. Bounds are resolved lazily on the
// first prompt, so the catalog is not consulted here.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*model.Search, error) {
	if req.Lower != nil && req.Upper != nil && !req.Lower.Before(*req.Upper) {
		return nil, ErrInvalidBounds
	}
	now := e.now().UTC()
	s := &model.Search{
		ID:             e.newID(),
		CreatedAt:      now,
		UpdatedAt:      now,
		TargetDuration: req.Duration,
		Updates:        []model.SearchUpdate{},
	}
	if req.Lower != nil {
		t := req.Lower.UTC()
		s.OriginalLowerBound = &t
	}
	if req.Upper != nil {
		t := req.Upper.UTC()
		s.OriginalUpperBound = &t
	}
	if err := e.sessions.Put(ctx, s); err != nil {
		return nil, err
	}
	metrics.SearchCreated()
	metrics.SetSearchesInMemory(e.sessions.Len())
	e.log.Info().Str("search_id", s.ID).Msg("search created")
	return s.Clone(), nil
}

// Get returns the current state of a search.
func (e *Engine) Get(ctx context.Context, id string) (*model.Search, error) {
	return e.sessions.Get(ctx, id)
}

// List returns summaries of all searches, optionally filtered by status.
func (e *Engine) List(ctx context.Context, status *model.Status) ([]model.SearchListResult, error) {
	all, err := e.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.SearchListResult, 0, len(all))
	for _, s := range all {
		st := s.Status()
		if status != nil && st != *status {
			continue
		}
		out = append(out, model.SearchListResult{
			ID:        s.ID,
			Status:    st,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
			Updates:   len(s.Updates),
		})
	}
	return out, nil
}

// NextPrompt computes the next probe for an active search. With no
// intervening update it returns the same timestamp every time.
func (e *Engine) NextPrompt(ctx context.Context, id string, strategy Strategy) (*model.SearchPrompt, error) {
	if strategy == "" {
		strategy = e.strategy
	}
	unlock := e.locks.Lock(id)
	defer unlock()

	s, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status() != model.StatusActive {
		return nil, ErrInactiveSearch
	}

	if e.catalogTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.catalogTimeout)
		defer cancel()
	}

	b, err := e.tracker.Bounds(ctx, s)
	if err != nil {
		return nil, err
	}
	prompt, err := e.selector.Prompt(ctx, b, strategy)
	if err != nil {
		return nil, err
	}

	metrics.PromptGenerated(string(strategy), prompt.PlayRequest != nil)
	ev := e.log.Debug().
		Str("search_id", id).
		Int("updates", len(s.Updates)).
		Time("lower", b.Lower).
		Time("upper", b.Upper).
		Time("probe", prompt.Timestamp)
	if prompt.PlayRequest != nil {
		ev = ev.Str("recording_id", prompt.PlayRequest.RecordingID)
	}
	ev.Msg("prompt generated")
	return &prompt, nil
}

// Submit appends feedback for prompt to the search history. The prompt is
// trusted to be one this engine issued for the search.
func (e *Engine) Submit(ctx context.Context, id string, prompt model.SearchPrompt, result model.Result) (*model.Search, error) {
	if _, err := model.ParseResult(string(result)); err != nil {
		return nil, ErrInvalidResult
	}
	unlock := e.locks.Lock(id)
	defer unlock()

	s, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status() == model.StatusCompleted {
		return nil, ErrSearchCompleted
	}

	prompt.Timestamp = prompt.Timestamp.UTC()
	prompt.CurrentLowerBound = prompt.CurrentLowerBound.UTC()
	prompt.CurrentUpperBound = prompt.CurrentUpperBound.UTC()
	u := model.SearchUpdate{
		Prompt:    prompt,
		Result:    result,
		CreatedAt: e.now().UTC(),
	}
	if Inverts(s, u) {
		return nil, ErrInvertedBounds
	}
	s.Append(u)
	if err := e.sessions.Put(ctx, s); err != nil {
		return nil, err
	}

	metrics.UpdateSubmitted(string(result))
	if s.Status() == model.StatusCompleted {
		metrics.SearchCompleted()
		e.log.Info().
			Str("search_id", id).
			Int("updates", len(s.Updates)).
			Time("moment", prompt.Timestamp).
			Msg("search completed")
	}
	return s, nil
}

// EvictIdle deletes searches not updated since cutoff and returns how many
// were removed.
func (e *Engine) EvictIdle(ctx context.Context, cutoff time.Time) (int, error) {
	all, err := e.sessions.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range all {
		if !s.UpdatedAt.Before(cutoff) {
			continue
		}
		unlock := e.locks.Lock(s.ID)
		cur, err := e.sessions.Get(ctx, s.ID)
		if err == nil && cur.UpdatedAt.Before(cutoff) {
			if err := e.sessions.Delete(ctx, s.ID); err == nil {
				n++
			}
		}
		unlock()
	}
	metrics.SetSearchesInMemory(e.sessions.Len())
	return n, nil
}
