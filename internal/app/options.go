package service

import (
	"github.com/okian/evalboard/internal/adapters/repository"
	"github.com/okian/evalboard/internal/config"
	"github.com/okian/evalboard/internal/domain/syncer"
	"github.com/okian/evalboard/pkg/logger"
)

// SourceFactory builds the record source for a configured source.
type SourceFactory func(src config.Source, cfg *config.Config) (syncer.Source, error)

// StoreFactory opens the snapshot store for a configured source.
type StoreFactory func(src config.Source, log logger.Logger) (repository.Store, error)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSourceFactory replaces the HTTP source used for every pipeline.
func WithSourceFactory(f SourceFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.newSource = f
		}
	}
}

// WithStoreFactory replaces how snapshot stores are opened.
func WithStoreFactory(f StoreFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.newStore = f
		}
	}
}

// WithMirrors enables or disables the snapshot mirror fallback.
func WithMirrors(enabled bool) Option {
	return func(s *Service) {
		s.mirrors = enabled
	}
}
