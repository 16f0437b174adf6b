package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-race-service/internal/domain"
)

// MaterialLoader fetches material from a backing store (e.g., Postgres).
type MaterialLoader interface {
	LoadMaterial(ctx context.Context, materialID string) (domain.Material, error)
}

// MaterialRepository caches materials with TTL to avoid repeated DB hits.
type MaterialRepository struct {
	loader MaterialLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedMaterial
}

type cachedMaterial struct {
	material  domain.Material
	expiresAt time.Time
}

func NewMaterialRepository(loader MaterialLoader, ttl time.Duration) *MaterialRepository {
	return &MaterialRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedMaterial),
	}
}

func (r *MaterialRepository) GetMaterial(ctx context.Context, materialID string) (domain.Material, error) {
	if m, ok := r.cached(materialID); ok {
		return m, nil
	}

	result, err, _ := r.sf.Do(materialID, func() (interface{}, error) {
		if m, ok := r.cached(materialID); ok {
			return m, nil
		}

		material, err := r.loader.LoadMaterial(ctx, materialID)
		if err != nil {
			return domain.Material{}, err
		}

		r.mu.Lock()
		r.cache[materialID] = cachedMaterial{
			material:  material,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return material, nil
	})
	if err != nil {
		return domain.Material{}, err
	}
	return result.(domain.Material), nil
}

func (r *MaterialRepository) cached(materialID string) (domain.Material, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[materialID]; ok && entry.expiresAt.After(now) {
		return entry.material, true
	}
	return domain.Material{}, false
}

func (r *MaterialRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// MaterialStore keeps materials in a map. It serves as both loader and store
// when no database is configured, and as a fixture in tests.
type MaterialStore struct {
	mu        sync.RWMutex
	materials map[string]domain.Material
}

func NewMaterialStore(seed map[string]domain.Material) *MaterialStore {
	materials := make(map[string]domain.Material, len(seed))
	for id, m := range seed {
		materials[id] = m
	}
	return &MaterialStore{materials: materials}
}

func (s *MaterialStore) SaveMaterial(_ context.Context, material domain.Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials[material.ID] = material
	return nil
}

func (s *MaterialStore) LoadMaterial(_ context.Context, materialID string) (domain.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.materials[materialID]; ok {
		return m, nil
	}
	return domain.Material{}, domain.Errorf(domain.KindNotFound, "material %q not found", materialID)
}
