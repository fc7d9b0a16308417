package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Seconds is a duration that travels over the wire as a float number of seconds.
type Seconds time.Duration

// maxSeconds is the largest magnitude a Seconds value can hold.
var maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// NewSeconds converts a float second count into Seconds.
func NewSeconds(s float64) Seconds {
	return Seconds(time.Duration(math.Round(s * float64(time.Second))))
}

// Duration returns the value as a time.Duration.
func (s Seconds) Duration() time.Duration { return time.Duration(s) }

// Float returns the value in seconds.
func (s Seconds) Float() float64 { return time.Duration(s).Seconds() }

func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Float())
}

func (s *Seconds) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("%w: duration must be a number of seconds", ErrValidation)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: duration must be finite", ErrValidation)
	}
	if math.Abs(f) >= maxSeconds {
		return fmt.Errorf("%w: duration out of range (at most %.0f seconds)", ErrValidation, maxSeconds)
	}
	*s = NewSeconds(f)
	return nil
}

// Recording is one audio file in the archive.
type Recording struct {
	ID          string    `json:"id"`
	FilePath    string    `json:"filePath"`
	BeginDate   time.Time `json:"beginDate"`
	AudioLength Seconds   `json:"audioLength"`
	Source      *string   `json:"source,omitempty"`
	SHA256Sum   *string   `json:"sha256sum,omitempty"`
	DiskUsage   *int64    `json:"diskUsage,omitempty"`
}

// End is the instant the recording stops.
func (r *Recording) End() time.Time {
	return r.BeginDate.Add(r.AudioLength.Duration())
}

// Covers reports whether ts lies in [BeginDate, End).
func (r *Recording) Covers(ts time.Time) bool {
	return !ts.Before(r.BeginDate) && ts.Before(r.End())
}

// RecordingPath is the minimal projection used by filesystem sync.
type RecordingPath struct {
	ID       string
	FilePath string
}

// ListRecordingsRequest filters recordings by begin date.
type ListRecordingsRequest struct {
	Start *time.Time
	End   *time.Time
}

// RecordingsSummary aggregates the catalog.
type RecordingsSummary struct {
	NumberOfRecordings  int64      `json:"numberOfRecordings"`
	SumOfDurations      *Seconds   `json:"sumOfDurations"`
	FirstRecordingBegin *time.Time `json:"firstRecordingBegin"`
	LastRecordingBegin  *time.Time `json:"lastRecordingBegin"`
}
