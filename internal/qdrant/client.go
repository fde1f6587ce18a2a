// Package qdrant is a minimal client for the Qdrant snapshot REST endpoints.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// HeaderAPIKey is the header Qdrant reads the pre-shared key from.
const HeaderAPIKey = "api-key"

// Qdrant REST endpoints.
const (
	pathCollections = "/collections"
	pathSnapshots   = "/collections/%s/snapshots"
	pathSnapshot    = "/collections/%s/snapshots/%s"
)

// maxErrorBody caps how much of a failed response is kept in HTTPStatusError.
const maxErrorBody = 1024

// Client talks to one Qdrant server. A single http.Client is reused for
// every call so connections are pooled across a run.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for baseURL. An empty apiKey disables the auth header.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the normalized server address.
func (c *Client) BaseURL() string { return c.baseURL }

// ListCollections returns the collections known to the server, in server order.
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	const op = "list collections"
	u := c.baseURL + pathCollections

	var env envelope[collectionsResult]
	if err := c.getJSON(ctx, op, http.MethodGet, u, &env); err != nil {
		return nil, err
	}
	if env.Result == nil {
		return nil, &DecodeError{Op: op, URL: u, Err: errors.New(`missing "result"`)}
	}
	if env.Result.Collections == nil {
		return nil, &DecodeError{Op: op, URL: u, Err: errors.New(`missing "result.collections"`)}
	}
	cols := *env.Result.Collections
	for i, col := range cols {
		if col.Name == "" {
			return nil, &DecodeError{Op: op, URL: u, Err: errors.Newf("collection %d has no name", i)}
		}
	}
	return cols, nil
}

// CreateSnapshot asks the server to snapshot collection. Each call creates a
// new snapshot on the server.
func (c *Client) CreateSnapshot(ctx context.Context, collection string) (Snapshot, error) {
	const op = "create snapshot"
	u := c.baseURL + formatPath(pathSnapshots, collection)

	var env envelope[Snapshot]
	if err := c.getJSON(ctx, op, http.MethodPost, u, &env); err != nil {
		return Snapshot{}, err
	}
	if env.Result == nil {
		return Snapshot{}, &DecodeError{Op: op, URL: u, Err: errors.New(`missing "result"`)}
	}
	if strings.TrimSpace(env.Result.Name) == "" {
		return Snapshot{}, &DecodeError{Op: op, URL: u, Err: errors.New("empty snapshot name")}
	}
	return *env.Result, nil
}

// DownloadSnapshot fetches the snapshot archive bytes.
func (c *Client) DownloadSnapshot(ctx context.Context, collection, snapshot string) ([]byte, error) {
	const op = "download snapshot"
	u := c.baseURL + formatPath(pathSnapshot, collection, snapshot)

	start := time.Now()
	resp, err := c.do(ctx, op, http.MethodGet, u, "application/octet-stream")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, URL: u, Err: err}
	}
	log.Debug().
		Str("action", "qdrant_download").
		Str("collection", collection).
		Str("snapshot", snapshot).
		Int("bytes", len(data)).
		Dur("elapsed_ms", time.Since(start)).
		Msg("snapshot body received")
	return data, nil
}

// getJSON performs the request and decodes a JSON body into out.
func (c *Client) getJSON(ctx context.Context, op, method, u string, out any) error {
	resp, err := c.do(ctx, op, method, u, "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Op: op, URL: u, Err: err}
	}
	return nil
}

// do sends one request and returns the response only when the status is 2xx.
func (c *Client) do(ctx context.Context, op, method, u, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, http.NoBody)
	if err != nil {
		return nil, &TransportError{Op: op, URL: u, Err: err}
	}
	req.Header.Set("Accept", accept)
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("action", "qdrant_request").Str("method", method).Str("url", u).Msg("request error")
		return nil, &TransportError{Op: op, URL: u, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Debug().
			Int("status", resp.StatusCode).
			Str("action", "qdrant_request").
			Str("method", method).
			Str("url", u).
			Msg("non-2xx response")
		return nil, &HTTPStatusError{
			Op:         op,
			URL:        u,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	return resp, nil
}

// formatPath escapes every segment before inserting it into layout.
func formatPath(layout string, segments ...string) string {
	args := make([]any, len(segments))
	for i, s := range segments {
		args[i] = url.PathEscape(s)
	}
	return fmt.Sprintf(layout, args...)
}
