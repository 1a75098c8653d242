// Package urlcheck provides a Reachability implementation backed by HTTP.
package urlcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTP probes URLs with a HEAD request, falling back to GET when the
// server rejects HEAD. The per-check deadline comes from the caller's
// context; the client timeout is a hard upper bound.
type HTTP struct {
	client *http.Client
}

// New creates an HTTP reachability checker.
func New(timeout time.Duration) *HTTP {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		client: &http.Client{Timeout: timeout},
	}
}

// Check reports nil when the URL answers with a non-5xx status.
func (h *HTTP) Check(ctx context.Context, url string) error {
	status, err := h.probe(ctx, http.MethodHead, url)
	if err != nil {
		return err
	}
	// Some servers refuse HEAD outright; retry with GET before failing.
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = h.probe(ctx, http.MethodGet, url)
		if err != nil {
			return err
		}
	}
	if status >= 500 {
		return fmt.Errorf("server returned %d", status)
	}
	return nil
}

func (h *HTTP) probe(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
