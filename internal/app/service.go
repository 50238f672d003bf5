// Package service wires one synchronization and leaderboard pipeline per
// configured source and serves the results to the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/evalboard/internal/adapters/repository"
	"github.com/okian/evalboard/internal/adapters/source"
	"github.com/okian/evalboard/internal/config"
	"github.com/okian/evalboard/internal/domain/leaderboard"
	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/internal/domain/syncer"
	"github.com/okian/evalboard/pkg/logger"
	"github.com/okian/evalboard/pkg/metrics"
)

// View is the leaderboard of one source at one snapshot.
type View struct {
	Source        string                     `json:"source"`
	Name          string                     `json:"name"`
	HighWaterMark int                        `json:"high_water_mark"`
	LastUpdate    model.Timestamp            `json:"last_update"`
	FromMirror    bool                       `json:"from_mirror,omitempty"`
	Table         leaderboard.Table          `json:"table"`
	Summary       []leaderboard.SummaryEntry `json:"summary"`
}

// SourceStats are headline figures for one source.
type SourceStats struct {
	Source        string            `json:"source"`
	Name          string            `json:"name"`
	HighWaterMark int               `json:"high_water_mark"`
	LastUpdate    model.Timestamp   `json:"last_update"`
	Stats         leaderboard.Stats `json:"stats"`
	Top           []model.Row       `json:"top"`
}

// pipeline is the per-source state.
type pipeline struct {
	cfg    config.PipelineConfig
	sync   *syncer.Synchronizer
	store  repository.Store
	mirror *source.Mirror

	mu       sync.Mutex
	view     *View
	mirrored *model.Snapshot
}

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	cfg       *config.Config
	pipelines map[string]*pipeline
	newSource SourceFactory
	newStore  StoreFactory
	mirrors   bool

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	active  sync.WaitGroup // calls holding a pipeline

	logger logger.Logger
}

// New constructs a Service for cfg. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		pipelines: make(map[string]*pipeline),
		newSource: httpSource,
		newStore:  openStore,
		mirrors:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func httpSource(src config.Source, cfg *config.Config) (syncer.Source, error) {
	return source.New(src.APIURL,
		source.WithTimeout(cfg.RequestTimeout()),
		source.WithRecordPath(src.RecordPath))
}

func openStore(src config.Source, log logger.Logger) (repository.Store, error) {
	return repository.Open(src.Store, src.SnapshotPath, repository.WithLogger(log))
}

// Start opens every source's store and starts the background sync loop
// when an interval is configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting evalboard service...")

	for _, key := range s.cfg.Keys() {
		p, err := s.buildPipeline(key)
		if err != nil {
			s.closePipelines()
			return err
		}
		s.pipelines[key] = p
	}

	s.stopCh = make(chan struct{})
	if every := s.cfg.SyncInterval(); every > 0 {
		s.wg.Add(1)
		go s.syncLoop(every)
	}

	s.started = true
	s.logger.Info(ctx, "evalboard service started",
		logger.Int("sources", len(s.pipelines)),
		logger.Duration("sync_interval", s.cfg.SyncInterval()),
		logger.String("loss_mode", s.cfg.LossMode))
	return nil
}

func (s *Service) buildPipeline(key string) (*pipeline, error) {
	pc, err := s.cfg.Pipeline(key)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(logger.String("source", key))

	src, err := s.newSource(pc.Source, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", key, err)
	}
	store, err := s.newStore(pc.Source, log)
	if err != nil {
		return nil, fmt.Errorf("store %q: %w", key, err)
	}

	p := &pipeline{
		cfg:   pc,
		store: store,
		sync: syncer.New(key, src, store,
			syncer.WithLogger(s.logger),
			syncer.WithCallTimeout(s.cfg.RequestTimeout()),
			syncer.WithRetry(syncer.RetryPolicy{
				Attempts: s.cfg.FetchRetries + 1,
				Backoff:  s.cfg.RetryBackoff(),
			})),
	}
	if s.mirrors && pc.Source.MirrorURL != "" {
		p.mirror = source.NewMirror(pc.Source.MirrorURL, &http.Client{Timeout: s.cfg.RequestTimeout()})
	}
	return p, nil
}

// Stop stops the sync loop, waits for in-flight calls and closes every
// store. Calls arriving after Stop get ErrNotStarted.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.logger.Info(context.Background(), "stopping evalboard service...")
	close(s.stopCh)
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	s.active.Wait()

	s.mu.Lock()
	s.closePipelines()
	s.mu.Unlock()
	s.logger.Info(context.Background(), "evalboard service stopped")
}

func (s *Service) closePipelines() {
	for key, p := range s.pipelines {
		if err := p.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing store failed", logger.String("source", key), logger.Error(err))
		}
		delete(s.pipelines, key)
	}
}

func (s *Service) syncLoop(every time.Duration) {
	defer s.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncAll(ctx, false); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn(ctx, "scheduled sync incomplete", logger.Error(err))
			}
		}
	}
}

// Keys returns the configured source keys in order.
func (s *Service) Keys() []string {
	return s.cfg.Keys()
}

// pipeline returns the pipeline for key and a release func the caller must
// call when done, so that Stop does not close the store underneath it.
func (s *Service) pipeline(key string) (*pipeline, func(), error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	p, ok := s.pipelines[key]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownSource, key)
	}
	s.active.Add(1)
	return p, s.active.Done, nil
}

// Sync runs one synchronization of the source with key. With force the
// stored snapshot is ignored and every record is fetched again.
func (s *Service) Sync(ctx context.Context, key string, force bool) (syncer.Report, error) {
	p, release, err := s.pipeline(key)
	if err != nil {
		return syncer.Report{}, err
	}
	defer release()
	if force {
		return p.sync.Reset(ctx)
	}
	return p.sync.Run(ctx)
}

// SyncAll synchronizes every source concurrently. Each source has its own
// snapshot, so runs never share a writer. The first error is returned after
// all runs finish; reports are returned for every source either way.
func (s *Service) SyncAll(ctx context.Context, force bool) (map[string]syncer.Report, error) {
	keys := s.Keys()
	reports := make([]syncer.Report, len(keys))

	var g errgroup.Group
	for i, key := range keys {
		g.Go(func() error {
			rep, err := s.Sync(ctx, key, force)
			reports[i] = rep
			return err
		})
	}
	err := g.Wait()

	out := make(map[string]syncer.Report, len(keys))
	for i, key := range keys {
		out[key] = reports[i]
	}
	return out, err
}

// Leaderboard returns the table and summary for the source with key. Views
// are cached per snapshot. When no local snapshot exists yet the configured
// mirror is used instead.
func (s *Service) Leaderboard(ctx context.Context, key string) (View, error) {
	p, release, err := s.pipeline(key)
	if err != nil {
		return View{}, err
	}
	defer release()

	snap, err := p.sync.Snapshot(ctx)
	if err != nil {
		return View{}, err
	}
	fromMirror := false
	if snap.Empty() && p.mirror != nil {
		if m, ok := s.mirrorSnapshot(ctx, key, p); ok {
			snap, fromMirror = m, true
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if v := p.view; v != nil && v.HighWaterMark == snap.HighWaterMark &&
		v.LastUpdate.Equal(snap.LastUpdate.Time) && v.FromMirror == fromMirror {
		return *v, nil
	}

	start := time.Now()
	table, summary := leaderboard.Build(snap.Records, p.cfg.Pinned, p.cfg.LossMode)
	metrics.RecordLeaderboardBuild(key, float64(time.Since(start).Microseconds())/1000, len(table.Rows))
	if table.Dropped > 0 {
		s.logger.Warn(ctx, "records sharing a pinned name were dropped",
			logger.String("source", key), logger.Int("dropped", table.Dropped))
	}
	s.logger.Debug(ctx, "leaderboard built",
		logger.String("source", key),
		logger.Int("rows", len(table.Rows)),
		logger.Int("summary", len(summary)))

	v := View{
		Source:        key,
		Name:          p.cfg.Source.Name,
		HighWaterMark: snap.HighWaterMark,
		LastUpdate:    snap.LastUpdate,
		FromMirror:    fromMirror,
		Table:         table,
		Summary:       summary,
	}
	p.view = &v
	return v, nil
}

// mirrorSnapshot fetches the mirror once per pipeline and keeps it until a
// local snapshot exists.
func (s *Service) mirrorSnapshot(ctx context.Context, key string, p *pipeline) (model.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mirrored != nil {
		return *p.mirrored, true
	}
	snap, err := p.mirror.Fetch(ctx)
	if err != nil {
		s.logger.Warn(ctx, "mirror unavailable", logger.String("source", key), logger.Error(err))
		metrics.RecordErrorByComponent("service", "mirror")
		return model.Snapshot{}, false
	}
	s.logger.Info(ctx, "loaded snapshot from mirror",
		logger.String("source", key), logger.Int("records", len(snap.Records)))
	p.mirrored = &snap
	return snap, true
}

// GetStats returns headline figures for every source. Sources whose
// snapshot cannot be read are left out and logged.
func (s *Service) GetStats(ctx context.Context) ([]SourceStats, error) {
	keys := s.Keys()
	out := make([]SourceStats, 0, len(keys))
	for _, key := range keys {
		v, err := s.Leaderboard(ctx, key)
		if errors.Is(err, ErrNotStarted) {
			return nil, err
		}
		if err != nil {
			s.logger.Warn(ctx, "stats unavailable", logger.String("source", key), logger.Error(err))
			continue
		}
		out = append(out, SourceStats{
			Source:        key,
			Name:          v.Name,
			HighWaterMark: v.HighWaterMark,
			LastUpdate:    v.LastUpdate,
			Stats:         leaderboard.Summary(v.Table.Rows),
			Top:           leaderboard.TopByScore(v.Table.Rows, s.cfg.TopN),
		})
	}
	return out, nil
}
