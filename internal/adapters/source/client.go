// Package source reads benchmark records from the remote evaluation store
// over HTTP.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/internal/domain/syncer"
)

// Client implements syncer.Source against the evaluation store API.
type Client struct {
	base       string
	recordPath string
	http       *http.Client
}

var _ syncer.Source = (*Client)(nil)

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}
	c := &Client{
		base:       strings.TrimRight(u.String(), "/"),
		recordPath: defaultRecordPath,
		http:       &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type statsResponse struct {
	TotalRecords int `json:"total_records"`
}

// Count returns the remote total_records.
func (c *Client) Count(ctx context.Context) (int, error) {
	var out statsResponse
	if err := c.getJSON(ctx, c.base+countPath, &out); err != nil {
		return 0, err
	}
	return out.TotalRecords, nil
}

type recordResponse struct {
	Name   string   `json:"name"`
	Parent *string  `json:"parent"`
	Score  *float64 `json:"score"`
	Result *struct {
		Test  string `json:"test"`
		Train string `json:"train"`
	} `json:"result"`
}

// Record fetches the record at index. Missing records and ones without a
// result object wrap syncer.ErrRecordInvalid.
func (c *Client) Record(ctx context.Context, index int) (model.RawRecord, error) {
	var out recordResponse
	err := c.getJSON(ctx, c.base+fmt.Sprintf(c.recordPath, index), &out)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return model.RawRecord{}, fmt.Errorf("index %d: %w: %w", index, syncer.ErrRecordInvalid, err)
	default:
		return model.RawRecord{}, fmt.Errorf("index %d: %w", index, err)
	}
	if out.Result == nil {
		return model.RawRecord{}, fmt.Errorf("index %d: %w: %w", index, syncer.ErrRecordInvalid, ErrMissingResult)
	}

	name := out.Name
	if strings.TrimSpace(name) == "" {
		name = model.DefaultName(index)
	}
	return model.RawRecord{
		Index:  index,
		Name:   name,
		Parent: out.Parent,
		Test:   out.Result.Test,
		Train:  out.Result.Train,
		Score:  out.Score,
	}, nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: GET %s: %d %s", ErrStatus, e.URL, e.Code, http.StatusText(e.Code))
}

// Unwrap lets errors.Is match ErrStatus, and ErrNotFound for 404s.
func (e *StatusError) Unwrap() []error {
	if e.Code == http.StatusNotFound {
		return []error{ErrStatus, ErrNotFound}
	}
	return []error{ErrStatus}
}

func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	return getJSON(ctx, c.http, rawURL, dst)
}

func getJSON(ctx context.Context, hc *http.Client, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrDecode, rawURL, err)
	}
	return nil
}
