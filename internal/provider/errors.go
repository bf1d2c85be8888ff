package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrMissingCredential indicates the API key for a provider is not
// configured. Adapters must return this before any network call is attempted.
var ErrMissingCredential = errors.New("provider credential not configured")

// ErrTimeout indicates the upstream call exceeded its deadline.
var ErrTimeout = errors.New("upstream request timed out")

// ErrUnreachable indicates the upstream could not be reached at all.
var ErrUnreachable = errors.New("upstream unreachable")

// UpstreamError carries a non-2xx upstream status plus whatever detail the
// provider's error envelope offered.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// ClassifyTransport converts an http.Client.Do failure into a structured
// variant at the point of failure, so callers never sniff error strings.
func ClassifyTransport(name string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%s: %w", name, ErrTimeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", name, ErrTimeout)
	}
	return fmt.Errorf("%s: %w: %v", name, ErrUnreachable, err)
}

// ParseUpstreamError builds an UpstreamError from a non-2xx response,
// extracting the nested error.message field when the body is the usual JSON
// envelope. A body that does not parse is not itself an error.
func ParseUpstreamError(name string, resp *http.Response) error {
	upErr := &UpstreamError{Provider: name, StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return upErr
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		upErr.Message = envelope.Error.Message
	} else if trimmed := strings.TrimSpace(string(body)); trimmed != "" && len(trimmed) <= 512 {
		upErr.Message = trimmed
	}

	return upErr
}
