package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	mappedDomainsKey     = "mappings:normalized"
	mappedDomainsVersion = "mappings:version"
)

// CacheRepository кэширует множество нормализованных доменов, уже имеющих маппинг.
// Значение хранится под ключом текущего поколения; Invalidate сдвигает поколение,
// поэтому запись, посчитанная до инвалидации, в новое поколение не попадёт
type CacheRepository interface {
	GetMappedDomains(ctx context.Context) ([]string, int64, error)
	SetMappedDomains(ctx context.Context, version int64, domains []string, ttl time.Duration) error
	InvalidateMappedDomains(ctx context.Context) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func versionedKey(version int64) string {
	return fmt.Sprintf("%s:%d", mappedDomainsKey, version)
}

// GetMappedDomains возвращает поколение даже при промахе: его нужно передать в Set
func (r *cacheRepository) GetMappedDomains(ctx context.Context) ([]string, int64, error) {
	version, err := r.redis.Client.Get(ctx, mappedDomainsVersion).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}

	data, err := r.redis.Client.Get(ctx, versionedKey(version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, version, ErrCacheMiss
		}
		return nil, version, err
	}

	var domains []string
	if err := json.Unmarshal(data, &domains); err != nil {
		return nil, version, fmt.Errorf("failed to unmarshal mapped domains: %w", err)
	}

	return domains, version, nil
}

func (r *cacheRepository) SetMappedDomains(ctx context.Context, version int64, domains []string, ttl time.Duration) error {
	data, err := json.Marshal(domains)
	if err != nil {
		return fmt.Errorf("failed to marshal mapped domains: %w", err)
	}

	return r.redis.Client.Set(ctx, versionedKey(version), data, ttl).Err()
}

// InvalidateMappedDomains: старые поколения дотухают по TTL
func (r *cacheRepository) InvalidateMappedDomains(ctx context.Context) error {
	return r.redis.Client.Incr(ctx, mappedDomainsVersion).Err()
}

// noopCache используется, когда Redis не настроен
type noopCache struct{}

func NewNoopCache() CacheRepository {
	return noopCache{}
}

func (noopCache) GetMappedDomains(context.Context) ([]string, int64, error) {
	return nil, 0, ErrCacheMiss
}

func (noopCache) SetMappedDomains(context.Context, int64, []string, time.Duration) error {
	return nil
}

func (noopCache) InvalidateMappedDomains(context.Context) error {
	return nil
}
