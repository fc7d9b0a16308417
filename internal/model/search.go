package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Result is the user's relative judgment of a prompt.
type Result string

const (
	ResultBefore Result = "before"
	ResultAfter  Result = "after"
	ResultExact  Result = "exact"
)

// ParseResult accepts exactly the three result variants.
func ParseResult(s string) (Result, error) {
	switch r := Result(s); r {
	case ResultBefore, ResultAfter, ResultExact:
		return r, nil
	}
	return "", fmt.Errorf("%w: result must be one of before, after, exact (got %q)", ErrValidation, s)
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: result must be a string", ErrValidation)
	}
	parsed, err := ParseResult(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Status of a search. It is always derived from the update history.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// ParseStatus accepts "active" and "completed".
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("%w: status must be active or completed (got %q)", ErrValidation, s)
}

// PlayRequest points at a playable instant inside a recording.
type PlayRequest struct {
	RecordingID string   `json:"recordingId"`
	Offset      *Seconds `json:"offset,omitempty"`
	Duration    *Seconds `json:"duration,omitempty"`
}

// SearchPrompt is one probe offered to the user. The bounds are informational;
// the next prompt is always recomputed from history.
type SearchPrompt struct {
	Timestamp         time.Time    `json:"timestamp"`
	PlayRequest       *PlayRequest `json:"playRequest"`
	CurrentLowerBound time.Time    `json:"currentLowerBound"`
	CurrentUpperBound time.Time    `json:"currentUpperBound"`
	CreatedAt         time.Time    `json:"createdAt"`
}

// SearchUpdate is one unit of feedback. Immutable once appended.
type SearchUpdate struct {
	Prompt    SearchPrompt `json:"prompt"`
	Result    Result       `json:"result"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Search is a bisection session.
type Search struct {
	ID                 string         `json:"id"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	TargetDuration     *Seconds       `json:"targetDuration,omitempty"`
	OriginalLowerBound *time.Time     `json:"originalLowerBound,omitempty"`
	OriginalUpperBound *time.Time     `json:"originalUpperBound,omitempty"`
	Updates            []SearchUpdate `json:"updates"`
}

// Status is completed iff any update carries an exact result.
func (s *Search) Status() Status {
	for _, u := range s.Updates {
		if u.Result == ResultExact {
			return StatusCompleted
		}
	}
	return StatusActive
}

// Append adds an update to the end of the history.
func (s *Search) Append(u SearchUpdate) {
	s.Updates = append(s.Updates, u)
	s.UpdatedAt = u.CreatedAt
}

// Clone returns a copy that shares no mutable state with s.
func (s *Search) Clone() *Search {
	out := *s
	out.Updates = append([]SearchUpdate(nil), s.Updates...)
	for i := range out.Updates {
		if pr := out.Updates[i].Prompt.PlayRequest; pr != nil {
			cp := *pr
			if pr.Offset != nil {
				o := *pr.Offset
				cp.Offset = &o
			}
			if pr.Duration != nil {
				d := *pr.Duration
				cp.Duration = &d
			}
			out.Updates[i].Prompt.PlayRequest = &cp
		}
	}
	if s.OriginalLowerBound != nil {
		t := *s.OriginalLowerBound
		out.OriginalLowerBound = &t
	}
	if s.OriginalUpperBound != nil {
		t := *s.OriginalUpperBound
		out.OriginalUpperBound = &t
	}
	if s.TargetDuration != nil {
		d := *s.TargetDuration
		out.TargetDuration = &d
	}
	return &out
}

func (s *Search) MarshalJSON() ([]byte, error) {
	type alias Search
	updates := s.Updates
	if updates == nil {
		updates = []SearchUpdate{}
	}
	return json.Marshal(struct {
		*alias
		Status  Status         `json:"status"`
		Updates []SearchUpdate `json:"updates"`
	}{alias: (*alias)(s), Status: s.Status(), Updates: updates})
}

// SearchListResult is the summary row returned by list.
type SearchListResult struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Updates   int       `json:"updates"`
}
