// Package client is a typed HTTP client for the recollect service.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/recollect/recollect/internal/model"
)

// Client talks to a running recollect service.
type Client struct {
	http *resty.Client
}

// Option configures a Client during construction in New.
type Option func(*Client) error

// WithTimeout sets the per-request timeout. It also bounds how long a playback stream may run.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.http.SetTimeout(d)
		return nil
	}
}

// WithDebug logs each request and response through resty.
func WithDebug(enabled bool) Option {
	return func(c *Client) error {
		c.http.SetDebug(enabled)
		return nil
	}
}

// WithRetries retries idempotent requests on transport errors and 5xx.
func WithRetries(n int) Option {
	return func(c *Client) error {
		c.http.SetRetryCount(n).
			SetRetryWaitTime(200 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if r == nil || r.Request == nil {
					return err != nil
				}
				m := r.Request.Method
				idempotent := m == http.MethodGet || m == http.MethodPut
				return idempotent && (err != nil || r.StatusCode() >= 500)
			})
		return nil
	}
}

// New returns a client for baseURL, e.g. http://localhost:8000.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetTimeout(30 * time.Second),
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CreateSearchRequest mirrors the POST /search body.
type CreateSearchRequest struct {
	Duration *model.Seconds `json:"duration,omitempty"`
	Lower    *time.Time     `json:"lower,omitempty"`
	Upper    *time.Time     `json:"upper,omitempty"`
}

func (c *Client) CreateSearch(ctx context.Context, req CreateSearchRequest) (*model.Search, error) {
	var out model.Search
	resp, err := c.http.R().SetContext(ctx).SetBody(req).SetResult(&out).Post("/search")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSearch(ctx context.Context, id string) (*model.Search, error) {
	var out model.Search
	resp, err := c.http.R().SetContext(ctx).SetPathParam("id", id).SetResult(&out).Get("/search/{id}")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSearches returns search summaries; status may be empty.
func (c *Client) ListSearches(ctx context.Context, status string) ([]model.SearchListResult, error) {
	var out struct {
		Searches []model.SearchListResult `json:"searches"`
	}
	r := c.http.R().SetContext(ctx).SetResult(&out)
	if status != "" {
		r.SetQueryParam("status", status)
	}
	resp, err := r.Get("/search")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Searches, nil
}

// NextPrompt asks for the next probe; strategy may be empty for the server default.
func (c *Client) NextPrompt(ctx context.Context, id, strategy string) (*model.SearchPrompt, error) {
	var out model.SearchPrompt
	r := c.http.R().SetContext(ctx).SetPathParam("id", id).SetResult(&out)
	if strategy != "" {
		r.SetQueryParam("strategy", strategy)
	}
	resp, err := r.Get("/search/{id}/prompt")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit records feedback for prompt.
func (c *Client) Submit(ctx context.Context, id string, prompt model.SearchPrompt, result model.Result) (*model.Search, error) {
	var out model.Search
	body := struct {
		Prompt model.SearchPrompt `json:"prompt"`
		Result model.Result       `json:"result"`
	}{prompt, result}
	resp, err := c.http.R().SetContext(ctx).SetPathParam("id", id).SetBody(body).SetResult(&out).Put("/search/{id}")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListRecordings(ctx context.Context, start, end *time.Time) ([]model.Recording, error) {
	var out struct {
		Recordings []model.Recording `json:"recordings"`
	}
	r := c.http.R().SetContext(ctx).SetResult(&out)
	if start != nil {
		r.SetQueryParam("start", start.UTC().Format(time.RFC3339Nano))
	}
	if end != nil {
		r.SetQueryParam("end", end.UTC().Format(time.RFC3339Nano))
	}
	resp, err := r.Get("/recordings")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Recordings, nil
}

func (c *Client) GetRecording(ctx context.Context, id string) (*model.Recording, error) {
	var out model.Recording
	resp, err := c.http.R().SetContext(ctx).SetPathParam("id", id).SetResult(&out).Get("/recordings/{id}")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Statistics(ctx context.Context) (*model.RecordingsSummary, error) {
	var out model.RecordingsSummary
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/statistics")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Play opens an MP3 stream for a clip. The caller must close the stream.
func (c *Client) Play(ctx context.Context, recordingID string, offset, duration *model.Seconds) (io.ReadCloser, error) {
	body := struct {
		Offset   *model.Seconds `json:"offset,omitempty"`
		Duration *model.Seconds `json:"duration,omitempty"`
	}{offset, duration}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", recordingID).
		SetBody(body).
		SetDoNotParseResponse(true).
		Post("/play/{id}")
	if err != nil {
		return nil, fmt.Errorf("play %s: %w", recordingID, err)
	}
	raw := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		defer raw.Close()
		b, _ := io.ReadAll(io.LimitReader(raw, 64<<10))
		return nil, newAPIError(resp.StatusCode(), b)
	}
	return raw, nil
}

// Health reports the service health status string.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/health")
	if err := check(resp, err); err != nil {
		return "", err
	}
	return out.Status, nil
}
