package source

import (
	"net/http"
	"strings"
	"time"
)

// Default client configuration constants.
const (
	defaultTimeout    = 30 * time.Second
	defaultRecordPath = "/elements/with-score/by-index/%d"
	countPath         = "/stats"
	maxBodyBytes      = 32 << 20
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the HTTP client timeout. Per-call deadlines on the
// request context still apply.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// WithRecordPath sets the printf-style path for a record by index, for
// sources that still serve the older /elements/by-index/%d endpoint.
func WithRecordPath(path string) Option {
	return func(c *Client) {
		if strings.Contains(path, "%d") {
			c.recordPath = path
		}
	}
}
