package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/recollect/recollect/internal/model"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recollect: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Unwrap maps the status onto the shared model sentinels so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return model.ErrValidation
	case http.StatusNotFound:
		return model.ErrNotFound
	case http.StatusForbidden:
		return model.ErrForbidden
	case http.StatusConflict:
		return model.ErrConflict
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	var er struct {
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &er) == nil && er.Message != "" {
		msg = er.Message
	}
	return &APIError{StatusCode: status, Message: msg}
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return newAPIError(resp.StatusCode(), resp.Body())
	}
	return nil
}
