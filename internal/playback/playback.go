// Package playback turns a (file, offset, duration) triple into an audio stream
// by driving ffmpeg, and plays such a stream locally through ffplay.
package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/recollect/recollect/internal/model"
)

var (
	ErrFileMissing    = fmt.Errorf("%w: recording file does not exist", model.ErrNotFound)
	ErrNotRegularFile = fmt.Errorf("%w: recording path is not a file", model.ErrValidation)
	ErrUnreadable     = fmt.Errorf("%w: recording file is not readable", model.ErrForbidden)
	ErrNegativeOffset = fmt.Errorf("%w: offset must be >= 0", model.ErrValidation)
)

// Request describes one clip. A zero Duration plays to the end of the file.
type Request struct {
	Path     string
	Offset   time.Duration
	Duration time.Duration
}

// Streamer writes an encoded clip to w.
type Streamer interface {
	Stream(ctx context.Context, w io.Writer, req Request) error
}

// CheckFile verifies that path names a readable regular file.
func CheckFile(path string) error {
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrFileMissing
	}
	if errors.Is(err, os.ErrPermission) {
		return ErrUnreadable
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return ErrNotRegularFile
	}
	f, err := os.Open(path)
	if err != nil {
		return ErrUnreadable
	}
	return f.Close()
}

// FFmpeg transcodes clips to MP3 on stdout.
type FFmpeg struct {
	Bin string
	log zerolog.Logger
}

func NewFFmpeg(bin string, log zerolog.Logger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{Bin: bin, log: log}
}

// Args returns the ffmpeg arguments for req.
func Args(req Request) []string {
	var args []string
	if req.Offset > 0 {
		args = append(args, "-ss", formatSeconds(req.Offset))
	}
	args = append(args, "-i", req.Path)
	if req.Duration > 0 {
		args = append(args, "-t", formatSeconds(req.Duration))
	}
	return append(args, "-loglevel", "error", "-f", "mp3", "-")
}

// Stream runs ffmpeg until the clip is written or ctx is cancelled, in which
// case the process is killed.
func (f *FFmpeg) Stream(ctx context.Context, w io.Writer, req Request) error {
	if req.Offset < 0 {
		return ErrNegativeOffset
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Bin, Args(req)...)
	cmd.Stdout = w
	cmd.Stderr = &limitedBuffer{buf: &stderr, max: 4096}

	start := time.Now()
	err := cmd.Run()
	if ctx.Err() != nil {
		f.log.Debug().Str("path", req.Path).Msg("playback cancelled by client")
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", req.Path, err, bytes.TrimSpace(stderr.Bytes()))
	}
	f.log.Debug().
		Str("path", req.Path).
		Dur("offset", req.Offset).
		Dur("duration", req.Duration).
		Dur("elapsed", time.Since(start)).
		Msg("clip streamed")
	return nil
}

// FFplay plays an audio stream without a window.
type FFplay struct {
	Bin string
}

// Play feeds r to ffplay on stdin. A player that exits early is not an error.
func (p FFplay) Play(ctx context.Context, r io.Reader) error {
	bin := p.Bin
	if bin == "" {
		bin = "ffplay"
	}
	cmd := exec.CommandContext(ctx, bin, "-autoexit", "-nodisp", "-loglevel", "quiet", "-i", "pipe:0")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", bin, err)
	}
	_, copyErr := io.Copy(stdin, r)
	_ = stdin.Close()
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// ffplay closing its stdin early means the user quit.
	if copyErr != nil && !errors.Is(copyErr, syscall.EPIPE) {
		return fmt.Errorf("feed %s: %w", bin, copyErr)
	}
	if waitErr != nil && copyErr == nil {
		return fmt.Errorf("%s: %w", bin, waitErr)
	}
	return nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	buf *bytes.Buffer
	max int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.max - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	return len(p), nil
}
