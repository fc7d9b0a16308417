package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollect/recollect/internal/client"
)

func TestRunStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/statistics", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"numberOfRecordings":2,"sumOfDurations":7200}`))
	}))
	defer srv.Close()

	cli, err := client.New(srv.URL)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, runStats(context.Background(), cli, &out))
	assert.Contains(t, out.String(), `"numberOfRecordings": 2`)
	assert.Contains(t, out.String(), `"sumOfDurations": 7200`)
}

func TestRunRecordings_PassesRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-03-01T00:00:00Z", r.URL.Query().Get("start"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"recordings":[{"id":"r1","filePath":"/a.opus","beginDate":"2024-03-01T01:00:00Z","audioLength":60}],"count":1}`))
	}))
	defer srv.Close()

	cli, err := client.New(srv.URL)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, runRecordings(context.Background(), cli, "2024-03-01T00:00:00Z", "", &out))
	assert.Contains(t, out.String(), `"id": "r1"`)
}

func TestRunRecordings_RejectsInvertedRange(t *testing.T) {
	cli, err := client.New("http://127.0.0.1:1")
	require.NoError(t, err)
	err = runRecordings(context.Background(), cli, "2024-03-02T00:00:00Z", "2024-03-01T00:00:00Z", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunSearches_SurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"status must be active or completed"}`))
	}))
	defer srv.Close()

	cli, err := client.New(srv.URL)
	require.NoError(t, err)
	err = runSearches(context.Background(), cli, "bogus", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status must be")
}
