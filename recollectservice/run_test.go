package recollectservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollect/recollect/internal/config"
	"github.com/recollect/recollect/internal/health"
	"github.com/recollect/recollect/internal/store/sqlite"
)

func TestCalculateStartupHealthTimeout(t *testing.T) {
	assert.Equal(t, 60, calculateStartupHealthTimeout(5))
	assert.Equal(t, 120, calculateStartupHealthTimeout(60))
}

func TestBuildRouter_ServesSearch(t *testing.T) {
	cfg := config.NewForTesting()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer st.Close()

	engine, err := newEngine(cfg, st, zerolog.Nop())
	require.NoError(t, err)
	svc := health.NewServiceHealthChecker(zerolog.Nop(), stuckChecker{})
	router := buildRouter(cfg, st, engine, svc, zerolog.Nop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/search", nil))
	assert.Equal(t, http.StatusCreated, w.Code)

	// Health reflects the aggregator handed to this router.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Contains(t, w.Body.String(), `"unhealthy"`)
}

func TestNewEngine_RejectsUnknownStrategy(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.ProbeStrategy = "random"
	_, err := newEngine(cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}

type stuckChecker struct{}

func (stuckChecker) Name() string                        { return "catalog" }
func (stuckChecker) IsHealthy() bool                     { return false }
func (stuckChecker) Start(context.Context, time.Duration) {}

func TestWaitUntilHealthy_HonoursContext(t *testing.T) {
	cfg := config.NewForTesting()
	svc := health.NewServiceHealthChecker(zerolog.Nop(), stuckChecker{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, waitUntilHealthy(ctx, cfg, svc), context.DeadlineExceeded)
}
