package catalogsync

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Prober reports the playable length of an audio file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// FFprobe reads the container duration with ffprobe.
type FFprobe struct {
	Bin string
}

func (p FFprobe) Duration(ctx context.Context, path string) (time.Duration, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbeOutput(stdout.String())
}

func parseProbeOutput(out string) (time.Duration, error) {
	s := strings.TrimSpace(out)
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", s, err)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("ffprobe reported non-positive duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
