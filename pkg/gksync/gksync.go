// Package gksync talks to the shared multi-tenant backend. Transport
// failures are normalized to ErrNetworkUnavailable so the router can
// tell "the network is down" apart from "the server said no".
package gksync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wurt83ow/poskeeper-client/pkg/errs"
)

type Client struct {
	serverURL string
	hc        *http.Client
}

// NewClient builds the remote API client. The timeout bounds every
// attempt: a hanging call is treated as a failure so the local store can
// take over, never left pending.
func NewClient(serverURL string, timeout time.Duration) *Client {
	return &Client{
		serverURL: serverURL,
		hc:        &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	u := c.serverURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewBuffer(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errs.Transient(method+" "+path, errs.ErrNetworkUnavailable)
	}
	return resp, nil
}

// statusError maps a non-2xx response to the error taxonomy. Validation
// and authorization rejections must never trigger a local fallback;
// server-side failures may.
func statusError(resp *http.Response, op string) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errs.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.Authorization(fmt.Sprintf("remote rejected %s: %s", op, string(msg)))
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity ||
		resp.StatusCode == http.StatusConflict:
		return errs.Validation(fmt.Sprintf("remote rejected %s: %s", op, string(msg)))
	default:
		return errs.Transient(op, fmt.Errorf("server returned status: %s", resp.Status))
	}
}

func decode(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
