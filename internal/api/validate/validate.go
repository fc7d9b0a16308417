package validate

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recollect/recollect/internal/model"
)

// timeLayouts are accepted for query-string timestamps, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp parses an RFC 3339 instant. Values without a zone are read as UTC.
func Timestamp(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", model.ErrValidation, field)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", model.ErrValidation, field)
}

// OptionalTimestamp returns nil for an empty value.
func OptionalTimestamp(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := Timestamp(field, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Range checks that start precedes end when both are present.
func Range(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("%w: start must not be after end", model.ErrValidation)
	}
	return nil
}

// Bounds checks that lower is strictly before upper when both are present.
func Bounds(lower, upper *time.Time) error {
	if lower != nil && upper != nil && !lower.Before(*upper) {
		return fmt.Errorf("%w: lower bound must be less than upper bound", model.ErrValidation)
	}
	return nil
}

// UUID checks that id is a canonical UUID.
func UUID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s must be a uuid", model.ErrValidation, field)
	}
	return nil
}

// NonNegative checks an optional duration.
func NonNegative(field string, v *model.Seconds) error {
	if v != nil && *v < 0 {
		return fmt.Errorf("%w: %s must be >= 0", model.ErrValidation, field)
	}
	return nil
}

// Positive checks an optional duration.
func Positive(field string, v *model.Seconds) error {
	if v != nil && *v <= 0 {
		return fmt.Errorf("%w: %s must be > 0", model.ErrValidation, field)
	}
	return nil
}
