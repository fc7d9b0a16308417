package syncjob

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollect/recollect/internal/catalogsync"
	"github.com/recollect/recollect/internal/config"
)

func TestNewWorker_RequiresDir(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.RecordingsDir = ""
	_, err := newWorker(cfg, Options{}, nil, zerolog.Nop())
	assert.ErrorContains(t, err, "RECORDINGS_DIR")
}

func TestNewWorker_FlagOverridesConfig(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.RecordingsDir = "/does/not/exist"
	w, err := newWorker(cfg, Options{Dir: t.TempDir()}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, w)
}

func TestRun_SinglePass(t *testing.T) {
	dir := t.TempDir()
	// Not a recording name; the pass finds nothing to probe.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	t.Setenv("RECOLLECT_BUILD_TARGET", "local")
	t.Setenv("RECOLLECT_DB_DRIVER", "sqlite")
	t.Setenv("RECOLLECT_SQLITE_PATH", filepath.Join(t.TempDir(), "c.db"))
	t.Setenv("RECOLLECT_LOG_LEVEL", "disabled")

	var out bytes.Buffer
	require.NoError(t, Run(Options{Dir: dir, Out: &out}))

	var res catalogsync.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Zero(t, res.Inserted)
	assert.Zero(t, res.Removed)
}

func TestWriteResult_NilWriter(t *testing.T) {
	assert.NoError(t, writeResult(nil, catalogsync.Result{}))
}
