// Package kube provides the HTTP access layer to the Kubernetes API: a
// JSON client, the kubectl-proxy port forward, and the event watch stream.
package kube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
)

// clientHeader identifies the deployer on every request.
const clientHeader = "k8deployer"

// ErrNotFound is returned when the API answers 404. DELETE callers treat it
// as success so teardown stays idempotent.
var ErrNotFound = errors.New("kube: resource not found")

// StatusError carries a non-2xx response.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kube: unexpected status %d %s: %s", e.Code, e.Status, e.Body)
}

// Client issues JSON requests against one cluster's API base URL.
type Client struct {
	baseURL  string
	http     *http.Client
	log      zerolog.Logger
	observer func(method, status string)
}

// NewClient creates a client for the given base URL, typically the local
// kubectl proxy address.
func NewClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		log:     log,
	}
}

// BaseURL returns the cluster API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// SetRequestObserver installs a callback invoked with the method and HTTP
// status of every completed request. Used for metrics collection.
func (c *Client) SetRequestObserver(fn func(method, status string)) {
	c.observer = fn
}

// Post serializes body and POSTs it to path. The response body is returned
// raw for callers that inspect the created object.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := k8api.MarshalBody(body)
	if err != nil {
		return nil, err
	}

	c.log.Debug().Str("path", path).Msg("POST")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("kube: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// Get fetches path and decodes the JSON response into out when out is
// non-nil. Returns ErrNotFound on 404.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("kube: build request: %w", err)
	}

	data, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return k8api.UnmarshalBody(data, out)
}

// Delete issues a DELETE against path. Returns ErrNotFound on 404 so the
// caller can decide to treat an absent resource as success.
func (c *Client) Delete(ctx context.Context, path string) error {
	c.log.Debug().Str("path", path).Msg("DELETE")

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("kube: build request: %w", err)
	}

	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("X-Client", clientHeader)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if c.observer != nil {
			c.observer(req.Method, "error")
		}
		return nil, fmt.Errorf("kube: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if c.observer != nil {
		c.observer(req.Method, fmt.Sprintf("%d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kube: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: truncate(string(data), 256)}
	}

	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
