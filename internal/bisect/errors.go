package bisect

import (
	"errors"
	"fmt"
	"time"

	"github.com/recollect/recollect/internal/model"
)

var (
	// ErrInvalidBounds is returned when a search is created with lower >= upper.
	ErrInvalidBounds = fmt.Errorf("%w: lower bound must be before upper bound", model.ErrValidation)
	// ErrSearchNotFound is returned for unknown search ids.
	ErrSearchNotFound = fmt.Errorf("search %w", model.ErrNotFound)
	// ErrInactiveSearch is returned when a prompt is requested for a finished search.
	ErrInactiveSearch = fmt.Errorf("%w: search not active", model.ErrConflict)
	// ErrSearchCompleted is returned when feedback is submitted to a finished search.
	ErrSearchCompleted = fmt.Errorf("%w: search already completed", model.ErrConflict)
	// ErrInvalidResult is returned for updates whose result is not before, after or exact.
	ErrInvalidResult = fmt.Errorf("%w: result must be one of before, after, exact", model.ErrValidation)
	// ErrInvertedBounds is returned when contradictory feedback leaves no room
	// for the target moment (lower > upper).
	ErrInvertedBounds = fmt.Errorf("%w: feedback is contradictory, lower bound passed upper bound", model.ErrConflict)
)

// CatalogInvariantError reports a catalog row that violated the lookup contract:
// a recording returned as starting before a timestamp actually starts after it.
type CatalogInvariantError struct {
	RecordingID string
	BeginDate   time.Time
	Timestamp   time.Time
}

func (e *CatalogInvariantError) Error() string {
	return fmt.Sprintf("catalog invariant violated: recording %s begins at %s, after probe %s",
		e.RecordingID, e.BeginDate.Format(time.RFC3339Nano), e.Timestamp.Format(time.RFC3339Nano))
}

// IsCatalogInvariant reports whether err carries a CatalogInvariantError.
func IsCatalogInvariant(err error) bool {
	var ce *CatalogInvariantError
	return errors.As(err, &ce)
}
