package store

import (
	"context"
	"time"

	"github.com/recollect/recollect/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Recordings() Recordings
	HealthPing(ctx context.Context) error
	Close() error
}

// Catalog is the read side of the recording archive used by the bisection engine.
// Every lookup may block on storage; callers bound it with a context deadline.
type Catalog interface {
	// EarliestBegin returns the smallest begin date, or nil when the catalog is empty.
	EarliestBegin(ctx context.Context) (*time.Time, error)
	// LatestEnd returns max(begin_date + audio_length), or nil when the catalog is empty.
	LatestEnd(ctx context.Context) (*time.Time, error)
	// FindLatestBefore returns the recording with the greatest begin date strictly
	// before ts, or nil when there is none.
	FindLatestBefore(ctx context.Context, ts time.Time) (*model.Recording, error)
	// FindEarliestFrom returns the recording with the smallest begin date at or
	// after ts, or nil when there is none.
	FindEarliestFrom(ctx context.Context, ts time.Time) (*model.Recording, error)
}

type Recordings interface {
	Catalog

	// Upsert inserts r keyed by file path. Existing rows are left untouched and
	// inserted is false.
	Upsert(ctx context.Context, r *model.Recording) (out *model.Recording, inserted bool, err error)
	GetByID(ctx context.Context, id string) (*model.Recording, error)
	List(ctx context.Context, req model.ListRecordingsRequest) ([]*model.Recording, error)
	Delete(ctx context.Context, id string) error
	ListPaths(ctx context.Context) ([]model.RecordingPath, error)
	ListMissingChecksum(ctx context.Context) ([]model.RecordingPath, error)
	SetChecksum(ctx context.Context, id, sha256sum string) error
	Summary(ctx context.Context) (*model.RecordingsSummary, error)
}
