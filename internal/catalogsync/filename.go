package catalogsync

import (
	"path/filepath"
	"regexp"
	"time"
)

// recordingName matches files written by the recorder, e.g. 2024-05-01_10-00-00.opus.
var recordingName = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})_(\d{2}-\d{2}-\d{2})\.opus$`)

const nameLayout = "2006-01-02 15-04-05"

// ParseBeginDate extracts the UTC start instant encoded in a recording file name.
func ParseBeginDate(path string) (time.Time, bool) {
	m := recordingName.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(nameLayout, m[1]+" "+m[2], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
