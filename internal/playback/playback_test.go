package playback

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollect/recollect/internal/model"
)

func TestArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"-i", "/a.opus", "-loglevel", "error", "-f", "mp3", "-"},
		Args(Request{Path: "/a.opus"}))
	assert.Equal(t,
		[]string{"-ss", "4050.5", "-i", "/a.opus", "-t", "5", "-loglevel", "error", "-f", "mp3", "-"},
		Args(Request{Path: "/a.opus", Offset: 4050*time.Second + 500*time.Millisecond, Duration: 5 * time.Second}))
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	assert.ErrorIs(t, CheckFile(filepath.Join(dir, "missing.opus")), model.ErrNotFound)
	assert.ErrorIs(t, CheckFile(dir), ErrNotRegularFile)

	f := filepath.Join(dir, "ok.opus")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	assert.NoError(t, CheckFile(f))

	if runtime.GOOS != "windows" && os.Geteuid() != 0 {
		locked := filepath.Join(dir, "locked.opus")
		require.NoError(t, os.WriteFile(locked, []byte("x"), 0o000))
		assert.ErrorIs(t, CheckFile(locked), model.ErrForbidden)
	}
}

func TestFFmpeg_StreamWritesStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as a fake ffmpeg")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho \"$@\"\n"), 0o755))

	var out bytes.Buffer
	err := NewFFmpeg(bin, zerolog.Nop()).Stream(context.Background(), &out, Request{Path: "/a.opus", Offset: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "-ss 2 -i /a.opus -loglevel error -f mp3 -\n", out.String())
}

func TestFFmpeg_FailureIncludesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as a fake ffmpeg")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 'Invalid data found' >&2\nexit 1\n"), 0o755))

	err := NewFFmpeg(bin, zerolog.Nop()).Stream(context.Background(), &bytes.Buffer{}, Request{Path: "/a.opus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestFFmpeg_RejectsNegativeOffset(t *testing.T) {
	err := NewFFmpeg("ffmpeg", zerolog.Nop()).Stream(context.Background(), &bytes.Buffer{}, Request{Path: "/a", Offset: -time.Second})
	assert.ErrorIs(t, err, model.ErrValidation)
}
