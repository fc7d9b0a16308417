package bisect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollect/recollect/internal/model"
)

func TestResolve(t *testing.T) {
	cat := newFakeCatalog(
		rec("r1", "00:00:00", time.Hour),
		rec("r2", "01:00:00", time.Hour),
		rec("r3", "04:00:00", 30*time.Minute),
	)
	r := NewResolver(cat)
	ctx := context.Background()

	tests := []struct {
		name   string
		ts     time.Time
		wantID string
		offset time.Duration
	}{
		{"inside first recording", at("00:30:00"), "r1", 30 * time.Minute},
		{"exact begin of a following recording", at("01:00:00"), "r2", 0},
		{"inside second recording", at("01:59:59"), "r2", time.Hour - time.Second},
		{"gap resolves to previous recording past its end", at("03:00:00"), "r2", 2 * time.Hour},
		{"after the last recording", at("05:00:00"), "r3", time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr, err := r.Resolve(ctx, tt.ts)
			require.NoError(t, err)
			require.NotNil(t, pr)
			assert.Equal(t, tt.wantID, pr.RecordingID)
			require.NotNil(t, pr.Offset)
			assert.Equal(t, tt.offset, pr.Offset.Duration())
			assert.Nil(t, pr.Duration)
		})
	}
}

func TestResolve_NothingBefore(t *testing.T) {
	r := NewResolver(newFakeCatalog(rec("r1", "10:00:00", time.Hour)))
	pr, err := r.Resolve(context.Background(), at("09:00:00"))
	require.NoError(t, err)
	assert.Nil(t, pr)

	// Strictly-before lookup: the recording starting at ts itself is only
	// used through the exact-begin fallback.
	pr, err = r.Resolve(context.Background(), at("10:00:00"))
	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, "r1", pr.RecordingID)
	assert.Equal(t, time.Duration(0), pr.Offset.Duration())
}

func TestResolve_IncompleteRecordingIsAbsent(t *testing.T) {
	cat := newFakeCatalog(&model.Recording{ID: "r1", FilePath: "x.opus", BeginDate: at("10:00:00")})
	pr, err := NewResolver(cat).Resolve(context.Background(), at("10:30:00"))
	require.NoError(t, err)
	assert.Nil(t, pr)
}

func TestResolve_CatalogInvariantViolation(t *testing.T) {
	r := NewResolver(&brokenCatalog{newFakeCatalog()})
	_, err := r.Resolve(context.Background(), at("10:00:00"))
	require.Error(t, err)
	assert.True(t, IsCatalogInvariant(err))

	var cie *CatalogInvariantError
	require.ErrorAs(t, err, &cie)
	assert.Equal(t, "bad", cie.RecordingID)
	assert.True(t, cie.Timestamp.Equal(at("10:00:00")))
}
