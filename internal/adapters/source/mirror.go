package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/evalboard/internal/domain/model"
)

// Mirror serves a read-only snapshot published elsewhere, used when no
// local snapshot exists yet.
type Mirror struct {
	url  string
	http *http.Client
}

// NewMirror creates a mirror reader for the snapshot JSON at rawURL.
func NewMirror(rawURL string, hc *http.Client) *Mirror {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Mirror{url: rawURL, http: hc}
}

// Fetch downloads and validates the mirrored snapshot.
func (m *Mirror) Fetch(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	if err := getJSON(ctx, m.http, m.url, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("mirror: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return model.Snapshot{}, fmt.Errorf("mirror: %w: %w", ErrDecode, err)
	}
	return snap, nil
}
