package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/okian/evalboard/internal/adapters/repository"
	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/internal/domain/parse"
)

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := c.lossMode(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.FetchRetries < 0 || c.RetryBackoffMS < 0 || c.SyncIntervalS < 0 {
		return fmt.Errorf("%w: fetch_retries, retry_backoff_ms and sync_interval_s must not be negative", ErrInvalidConfig)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: at least one source is required", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Sources))
	// Each snapshot has a single writer, so no two sources may share one.
	paths := make(map[string]string, len(c.Sources))
	for i, s := range c.Sources {
		switch {
		case s.Key == "":
			return fmt.Errorf("%w: sources[%d]: key must not be empty", ErrInvalidConfig, i)
		case strings.EqualFold(s.Key, AllSources):
			return fmt.Errorf("%w: sources[%d]: key %q is reserved", ErrInvalidConfig, i, s.Key)
		case s.APIURL == "":
			return fmt.Errorf("%w: source %q: api_url must not be empty", ErrInvalidConfig, s.Key)
		case s.SnapshotPath == "" && s.Store != repository.BackendMemory:
			return fmt.Errorf("%w: source %q: snapshot_path must not be empty", ErrInvalidConfig, s.Key)
		case s.Store != "" && !slices.Contains(repository.Backends(), s.Store):
			return fmt.Errorf("%w: source %q: unknown store %q", ErrInvalidConfig, s.Key, s.Store)
		case s.RecordPath != "" && !strings.Contains(s.RecordPath, "%d"):
			return fmt.Errorf("%w: source %q: record_path must contain %%d", ErrInvalidConfig, s.Key)
		}
		if _, dup := seen[s.Key]; dup {
			return fmt.Errorf("%w: duplicate source key %q", ErrInvalidConfig, s.Key)
		}
		seen[s.Key] = struct{}{}

		if s.Store == repository.BackendMemory {
			continue
		}
		path := filepath.Clean(s.SnapshotPath)
		if other, dup := paths[path]; dup {
			return fmt.Errorf("%w: sources %q and %q share snapshot_path %q", ErrInvalidConfig, other, s.Key, s.SnapshotPath)
		}
		paths[path] = s.Key
	}

	for i, p := range c.Pinned {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: pinned[%d]: name must not be empty", ErrInvalidConfig, i)
		}
		if p.Role == model.RoleOrdinary || !p.Role.Valid() {
			return fmt.Errorf("%w: pinned %q: role must be sota or baseline", ErrInvalidConfig, p.Name)
		}
	}
	return nil
}

func (c *Config) lossMode() (parse.LossMode, error) {
	return parse.ParseLossMode(c.LossMode, c.LossStep)
}

// AllSources selects every configured source where a key is expected.
const AllSources = "all"

// Pipeline builds the per-run configuration for the source with key.
func (c *Config) Pipeline(key string) (PipelineConfig, error) {
	src, ok := c.Source(key)
	if !ok {
		return PipelineConfig{}, fmt.Errorf("%w: %q", ErrUnknownSource, key)
	}
	mode, err := c.lossMode()
	if err != nil {
		return PipelineConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return PipelineConfig{
		Pinned:   slices.Clone(c.Pinned),
		LossMode: mode,
		Source:   src,
	}, nil
}
