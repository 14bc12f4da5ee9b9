// Package mist talks to the Mist cloud REST API. It is the only package that touches the network.
package mist

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// DefaultBaseURL is the EU cloud endpoint.
const DefaultBaseURL = "https://api.eu.mist.com/api/v1"

// ClientConfig holds what a Client needs to reach one organization.
type ClientConfig struct {
	BaseURL            string
	OrgID              string
	Token              string
	SiteNameFilter     string
	InsecureSkipVerify bool
	Timeout            time.Duration
	SiteConcurrency    int
	// Instrument optionally wraps the transport, e.g. with request counters.
	Instrument func(http.RoundTripper) http.RoundTripper
}

// Client fetches sites, device stats and edge stats for one organization.
type Client struct {
	baseURL     string
	orgID       string
	token       string
	filter      *SiteFilter
	concurrency int
	timeout     time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient returns a *Client or an error when the site filter does not compile.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	filter, err := NewSiteFilter(cfg.SiteNameFilter)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicit user choice via --ignore_ssl
	}
	var rt http.RoundTripper = transport
	if cfg.Instrument != nil {
		rt = cfg.Instrument(rt)
	}

	concurrency := cfg.SiteConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:     baseURL,
		orgID:       cfg.OrgID,
		token:       cfg.Token,
		filter:      filter,
		concurrency: concurrency,
		timeout:     cfg.Timeout,
		httpClient: &http.Client{
			Transport: rt,
			Timeout:   cfg.Timeout,
		},
		logger: logger.With(slog.String("component", "mist_client")),
	}, nil
}

// endpoint joins escaped path segments onto the base URL.
func (c *Client) endpoint(segments ...string) (string, error) {
	target, err := url.JoinPath(c.baseURL, segments...)
	if err != nil {
		return "", errors.Wrap(err, "building request URL")
	}
	return target, nil
}

// getRecords issues one GET and decodes a JSON array of objects.
func (c *Client) getRecords(ctx context.Context, target string) ([]map[string]any, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithStack(&FetchError{Kind: TransportFailure, URL: target, Err: err})
	}
	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", slog.Any("error", err))
		}
	}()

	c.logger.Debug("api call",
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.WithStack(&FetchError{Kind: StatusFailure, URL: target, Code: resp.StatusCode})
	}

	var records []map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, errors.WithStack(&FetchError{Kind: DecodeFailure, URL: target, Code: resp.StatusCode, Err: err})
	}
	return records, nil
}
