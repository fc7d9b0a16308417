package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollect/recollect/internal/model"
)

func TestTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-05-01T10:00:00Z", "2024-05-01T12:00:00+02:00", "2024-05-01T10:00:00"} {
		got, err := Timestamp("start", in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, err := Timestamp("start", "yesterday")
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = Timestamp("start", "")
	assert.ErrorContains(t, err, "start is required")
}

func TestOptionalTimestamp(t *testing.T) {
	got, err := OptionalTimestamp("end", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = OptionalTimestamp("end", "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2024, got.Year())
}

func TestBoundsAndRange(t *testing.T) {
	a := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)
	assert.NoError(t, Bounds(&a, &b))
	assert.Error(t, Bounds(&b, &a))
	assert.Error(t, Bounds(&a, &a), "empty interval")
	assert.NoError(t, Bounds(nil, &a))

	assert.NoError(t, Range(&a, &a))
	assert.Error(t, Range(&b, &a))
}

func TestUUID(t *testing.T) {
	assert.NoError(t, UUID("id", "7d0f1c4e-3b0a-4d8e-9c39-7f3c2a1b5e60"))
	assert.ErrorIs(t, UUID("id", "abc"), model.ErrValidation)
}

func TestDurations(t *testing.T) {
	neg := model.NewSeconds(-1)
	zero := model.NewSeconds(0)
	assert.Error(t, NonNegative("offset", &neg))
	assert.NoError(t, NonNegative("offset", &zero))
	assert.NoError(t, NonNegative("offset", nil))
	assert.Error(t, Positive("duration", &zero))
}
