// Package registry manages the catalogue of compliance frameworks. Reads go
// through a bounded LRU so assessments do not hit the store for every run;
// the cache is invalidated on registration, never trusted over the store.
package registry

import (
	"context"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"attest/internal/compliance/models"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/sentinel"
)

// FrameworkStore persists framework definitions.
type FrameworkStore interface {
	Save(ctx context.Context, framework models.Framework) error
	GetByName(ctx context.Context, name string) (models.Framework, error)
	List(ctx context.Context) ([]models.Framework, error)
}

// Registry is the caching front over a FrameworkStore.
type Registry struct {
	store FrameworkStore
	cache *lru.Cache[string, models.Framework]
}

const defaultCacheSize = 64

func New(store FrameworkStore, cacheSize int) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, models.Framework](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Registry{store: store, cache: cache}, nil
}

// Register validates and stores a framework, replacing any prior version
// under the same name.
func (r *Registry) Register(ctx context.Context, framework models.Framework) error {
	if err := framework.Validate(); err != nil {
		return err
	}
	if err := r.store.Save(ctx, framework); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistenceFailure, "save framework")
	}
	r.cache.Remove(framework.Name)
	return nil
}

// Get returns one framework by name.
func (r *Registry) Get(ctx context.Context, name string) (models.Framework, error) {
	if framework, ok := r.cache.Get(name); ok {
		return framework, nil
	}
	framework, err := r.store.GetByName(ctx, name)
	if err != nil {
		return models.Framework{}, dErrors.Wrap(err, dErrors.CodeNotFound, "framework not found")
	}
	r.cache.Add(name, framework)
	return framework, nil
}

// List returns all registered frameworks.
func (r *Registry) List(ctx context.Context) ([]models.Framework, error) {
	return r.store.List(ctx)
}

// MemoryStore is a map-backed FrameworkStore.
type MemoryStore struct {
	mu         sync.RWMutex
	frameworks map[string]models.Framework
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{frameworks: make(map[string]models.Framework)}
}

func (s *MemoryStore) Save(_ context.Context, framework models.Framework) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameworks[framework.Name] = framework
	return nil
}

func (s *MemoryStore) GetByName(_ context.Context, name string) (models.Framework, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	framework, ok := s.frameworks[name]
	if !ok {
		return models.Framework{}, sentinel.ErrNotFound
	}
	return framework, nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.Framework, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Framework, 0, len(s.frameworks))
	for _, framework := range s.frameworks {
		out = append(out, framework)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
