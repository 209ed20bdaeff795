// Package remote is the JSON-over-HTTPS plumbing shared by the hosted task
// backends: bearer authentication, request pacing, and mapping of transport
// and HTTP failures onto domain errors.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/gosuda/vibetodo/internal/domain"
)

// ErrNotFound is returned for HTTP 404. Adapters turn it into an absent
// result rather than surfacing it.
var ErrNotFound = errors.New("remote: not found")

const maxResponseBytes = 16 << 20

// Options configures a Client.
type Options struct {
	// Service names the backend in errors and logs, e.g. "notion".
	Service string
	BaseURL string
	// TokenSource supplies bearer tokens. Required.
	TokenSource oauth2.TokenSource
	// Transport is the underlying round tripper; nil uses http.DefaultTransport.
	Transport http.RoundTripper
	Headers   map[string]string
	// RequestsPerSecond and Burst pace outgoing requests. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client issues JSON requests against one remote API.
type Client struct {
	service string
	baseURL *url.URL
	http    *http.Client
	headers http.Header
	limiter *rate.Limiter
}

func New(opts Options) (*Client, error) {
	if opts.TokenSource == nil {
		return nil, fmt.Errorf("remote.New(%s): token source is required: %w", opts.Service, domain.ErrConfiguration)
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote.New(%s): invalid base url %q: %w", opts.Service, opts.BaseURL, domain.ErrConfiguration)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	headers := make(http.Header, len(opts.Headers)+2)
	headers.Set("Accept", "application/json")
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := max(opts.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		service: opts.Service,
		baseURL: base,
		http: &http.Client{
			Transport: &oauth2.Transport{Source: opts.TokenSource, Base: opts.Transport},
			Timeout:   timeout,
		},
		headers: headers,
		limiter: limiter,
	}, nil
}

// Do sends a request and decodes a JSON response into out (which may be nil).
// ref is either a path relative to the base URL or an absolute URL, such as
// a continuation link returned by the API.
func (c *Client) Do(ctx context.Context, method, ref string, query url.Values, body, out any) error {
	u, err := c.resolve(ref)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, ref, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encoding body: %w", method, ref, err)
		}
		reqBody = bytes.NewReader(b)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w: %w", c.service, domain.ErrBackendUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, ref, err)
	}
	for k, vs := range c.headers {
		req.Header[k] = vs
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s %s: %w: %w", c.service, method, u.Path, domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: reading response: %w: %w", c.service, domain.ErrBackendUnavailable, err)
	}

	log.Debug().
		Str("service", c.service).
		Str("method", method).
		Str("path", u.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("remote request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(c.service, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decoding %s %s response: %w: %w", c.service, method, u.Path, domain.ErrBackendUnavailable, err)
	}

	return nil
}

func (c *Client) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if u.IsAbs() {
		return u, nil
	}
	return c.baseURL.ResolveReference(&url.URL{Path: strings.TrimLeft(u.Path, "/"), RawQuery: u.RawQuery}), nil
}
