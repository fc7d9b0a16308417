//go:build invariants
// +build invariants

// These checks run against a deployed service:
//
//	RECOLLECT_INVARIANTS_URL=http://localhost:8000 go test -tags invariants ./internal/invariants/...
package invariants

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recollect/recollect/internal/client"
)

func TestServiceInvariants(t *testing.T) {
	baseURL := os.Getenv("RECOLLECT_INVARIANTS_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	cli, err := client.New(baseURL)
	require.NoError(t, err)
	status, err := cli.Health(context.Background())
	require.NoError(t, err, "service must be running at %s", baseURL)
	require.Equal(t, "healthy", status)

	// A window far from real recordings keeps the checks independent of the archive.
	NewInvariantChecker(t, baseURL, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)).RunAll(t)
}
