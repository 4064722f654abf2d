// Package modelcache caches built models and persists relational snapshots between
// migrations.
package modelcache

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// BuildFunc builds a model
type BuildFunc func() (*metadata.Model, error)

// Source caches finalized models by key. Concurrent requests for a key that is not yet
// cached share a single build.
type Source struct {
	mu     sync.RWMutex
	models map[string]*metadata.Model
	group  singleflight.Group
	logger *zap.Logger
}

// NewSource creates an empty model source. A nil logger discards output.
func NewSource(logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		models: make(map[string]*metadata.Model),
		logger: logger,
	}
}

// GetModel returns the model cached under key, building it with build on a miss.
// Failed builds are not cached.
func (s *Source) GetModel(key string, build BuildFunc) (*metadata.Model, error) {
	s.mu.RLock()
	m, ok := s.models[key]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		s.mu.RLock()
		m, ok := s.models[key]
		s.mu.RUnlock()
		if ok {
			return m, nil
		}

		s.logger.Debug("building model", zap.String("key", key))
		m, err := build()
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("model %q: build returned no model", key)
		}

		s.mu.Lock()
		s.models[key] = m
		s.mu.Unlock()
		s.logger.Debug("model cached", zap.String("key", key), zap.Int("entity_types", len(m.EntityTypes())))
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build model %q: %w", key, err)
	}
	if shared {
		s.logger.Debug("shared model build", zap.String("key", key))
	}
	return v.(*metadata.Model), nil
}

// Invalidate drops the model cached under key
func (s *Source) Invalidate(key string) {
	s.mu.Lock()
	delete(s.models, key)
	s.mu.Unlock()
	s.group.Forget(key)
}

// Len returns the number of cached models
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}
