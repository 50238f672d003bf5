// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Derived per-run values are built by Pipeline, never read from globals.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"time"

	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/internal/domain/normalize"
	"github.com/okian/evalboard/internal/domain/parse"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DocsScriptURL is the ReDoc bundle loaded by /api-docs. Empty serves
	// the page with a plain link to the document.
	DocsScriptURL string `koanf:"docs_script_url"`

	// RequestTimeoutMS bounds every call to a record source.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// FetchRetries is the number of extra attempts for a failing record
	// fetch. Zero skips a failing record at once.
	FetchRetries int `koanf:"fetch_retries"`

	// RetryBackoffMS is the pause between record fetch attempts.
	RetryBackoffMS int `koanf:"retry_backoff_ms"`

	// SyncIntervalS runs a background sync of every source at this
	// interval. Zero disables it.
	SyncIntervalS int `koanf:"sync_interval_s"`

	// LossMode is at_step or minimum; LossStep is the step for at_step.
	LossMode string `koanf:"loss_mode"`
	LossStep int    `koanf:"loss_step"`

	// TopN caps the top-by-score list in stats responses.
	TopN int `koanf:"top_n"`

	// Sources lists the record sources, each with its own snapshot.
	Sources []Source `koanf:"sources"`

	// Pinned lists the reserved leaderboard rows in display order.
	Pinned []model.Pinned `koanf:"pinned"`
}

// Source configures one remote record source.
type Source struct {
	Key          string `koanf:"key"`
	Name         string `koanf:"name"`
	APIURL       string `koanf:"api_url"`
	RecordPath   string `koanf:"record_path"`
	SnapshotPath string `koanf:"snapshot_path"`
	Store        string `koanf:"store"`
	MirrorURL    string `koanf:"mirror_url"`
}

// PipelineConfig is everything one pipeline run needs, built once per run.
type PipelineConfig struct {
	Pinned   []model.Pinned
	LossMode parse.LossMode
	Source   Source
}

// New creates a Config with the production defaults: two sources and the
// standard pinned rows.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		DocsScriptURL:    "https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js",
		RequestTimeoutMS: 30_000,
		FetchRetries:     0,
		RetryBackoffMS:   500,
		SyncIntervalS:    0,
		LossMode:         parse.ModeAtStep,
		LossStep:         2000,
		TopN:             5,
		Sources:          defaultSources(),
		Pinned:           defaultPinned(),
	}
}

func defaultSources() []Source {
	return []Source{
		{
			Key:          "db1",
			Name:         "Database 1",
			APIURL:       "http://45.78.231.212:8001",
			RecordPath:   "/elements/with-score/by-index/%d",
			SnapshotPath: "cache_db1.json",
			Store:        "file",
			MirrorURL:    "https://raw.githubusercontent.com/HZxCzar/FrontEnd/main/cache.json",
		},
		{
			Key:          "db2",
			Name:         "Database 2",
			APIURL:       "http://10.252.176.14:8001",
			RecordPath:   "/elements/with-score/by-index/%d",
			SnapshotPath: "cache_db2.json",
			Store:        "file",
			MirrorURL:    "https://raw.githubusercontent.com/HZxCzar/FrontEnd/main/cache_db2.json",
		},
	}
}

func defaultPinned() []model.Pinned {
	f := func(v float64) *float64 { return &v }
	return []model.Pinned{
		{
			Name: "gated_delta_net",
			Role: model.RoleSOTA,
			Fixed: &model.FixedMetrics{
				Loss: f(4.377),
				Benchmarks: map[string]float64{
					normalize.ARCChallenge:    0.168,
					normalize.ARCEasy:         0.374,
					normalize.BoolQ:           0.370,
					normalize.FDA:             0.000,
					normalize.HellaSwag:       0.282,
					normalize.LambadaOpenAI:   0.002,
					normalize.OpenBookQA:      0.144,
					normalize.PIQA:            0.562,
					normalize.SocialIQA:       0.350,
					normalize.SQuADCompletion: 0.004,
					normalize.SWDE:            0.002,
					normalize.WinoGrande:      0.456,
				},
			},
		},
		{Name: "delta_net", Role: model.RoleBaseline},
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// RetryBackoff returns RetryBackoffMS as a duration.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// SyncInterval returns SyncIntervalS as a duration.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalS) * time.Second
}

// Keys returns the source keys in configuration order.
func (c *Config) Keys() []string {
	out := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		out[i] = s.Key
	}
	return out
}

// Source returns the source with key.
func (c *Config) Source(key string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Key == key {
			return s, true
		}
	}
	return Source{}, false
}
