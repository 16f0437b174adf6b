package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-race-service/internal/domain"
)

// MaterialLoader fetches material from a backing store (e.g., Postgres).
type MaterialLoader interface {
	LoadMaterial(ctx context.Context, materialID string) (domain.Material, error)
}

// MaterialRepository caches material documents in Redis as JSON and falls back to a loader on cache miss.
// Stored as: SET material:{materialID} {json} EX ttl
type MaterialRepository struct {
	client *redis.Client
	loader MaterialLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewMaterialRepository(client *redis.Client, loader MaterialLoader, ttl time.Duration) *MaterialRepository {
	return &MaterialRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *MaterialRepository) GetMaterial(ctx context.Context, materialID string) (domain.Material, error) {
	if m, ok := r.cached(ctx, materialID); ok {
		return m, nil
	}

	result, err, _ := r.sf.Do(materialID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if m, ok := r.cached(ctx, materialID); ok {
			return m, nil
		}

		material, err := r.loader.LoadMaterial(ctx, materialID)
		if err != nil {
			return domain.Material{}, err
		}

		// cache fill is best effort; the loader stays the source of truth
		if data, err := json.Marshal(material); err == nil {
			_ = r.client.Set(ctx, r.key(materialID), data, r.ttlWithJitter()).Err()
		}
		return material, nil
	})
	if err != nil {
		return domain.Material{}, err
	}
	return result.(domain.Material), nil
}

func (r *MaterialRepository) cached(ctx context.Context, materialID string) (domain.Material, bool) {
	data, err := r.client.Get(ctx, r.key(materialID)).Bytes()
	if err != nil {
		return domain.Material{}, false
	}
	var m domain.Material
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Material{}, false
	}
	return m, true
}

func (r *MaterialRepository) key(materialID string) string {
	return "material:" + materialID
}

func (r *MaterialRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
