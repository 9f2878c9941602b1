package kube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
)

// WatchEvents opens the long-lived event watch stream and invokes fn for
// every decoded event, in stream order, until the stream closes or the
// context ends. The request carries no client-side receive deadline; the
// server is expected to hold the connection open indefinitely.
func (c *Client) WatchEvents(ctx context.Context, fn func(*k8api.Event)) error {
	url := c.baseURL + "/api/v1/events?watch=true"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("kube: build watch request: %w", err)
	}
	req.Header.Set("X-Client", clientHeader)

	// A dedicated transport without response timeouts: the watch is a
	// long poll and must outlive any default client deadline.
	watchClient := &http.Client{Transport: c.http.Transport}

	resp, err := watchClient.Do(req)
	if err != nil {
		return fmt.Errorf("kube: open watch stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	c.log.Debug().Str("url", url).Msg("watch stream open")

	dec := json.NewDecoder(resp.Body)
	for {
		var frame k8api.WatchEvent
		if err := dec.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kube: decode watch frame: %w", err)
		}

		ev := frame.Object
		c.log.Trace().
			Str("name", ev.Metadata.Name).
			Str("reason", ev.Reason).
			Str("message", ev.Message).
			Msg("event")

		fn(&ev)
	}
}
