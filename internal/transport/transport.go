// Package transport sends HTTP requests on behalf of the auth and graph packages
// and hands back the status and fully read body.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/waabox/graphctl/internal/domain"
)

// DefaultTimeout bounds every request when no client is injected.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Doer is satisfied by *http.Client. Tests inject scripted implementations.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a structured, fully buffered HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the status is in the 2xx range.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client wraps a Doer.
type Client struct {
	doer Doer
}

// NewClient creates a Client. Pass nil to use an *http.Client with DefaultTimeout.
func NewClient(doer Doer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{doer: doer}
}

// PostForm sends form as an application/x-www-form-urlencoded POST body.
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

// Get sends a GET request with the given extra headers.
func (c *Client) Get(ctx context.Context, endpoint string, header http.Header) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	return c.Do(req)
}

// Do executes req and reads the whole body. Network failures are wrapped in
// domain.ErrTransport and are not retried.
func (c *Client) Do(req *http.Request) (Response, error) {
	resp, err := c.doer.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s %s: %w", domain.ErrTransport, req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("%w: reading response body: %w", domain.ErrTransport, err)
	}
	return Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}
