package tag

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReadCache is the interface a Tag's second-tier read cache satisfies.
// The zero-tier cache (cacheTTL/cacheExpireAt on the Tag itself) is
// private to one process; a ReadCache is shared, so a value one process
// reads can serve a cache hit in another without either touching the
// gateway.
type ReadCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}

// RedisCache is a ReadCache backed by a Redis (or Valkey) server, for
// deployments running several instances of this library against the same
// gateway and wanting a shared read cache instead of each instance
// independently polling the PLC. Grounded on valkey.Publisher's client
// construction (dial timeout, optional TLS) with the Pub/Sub write-back
// machinery dropped — this is a plain cache, not a tag-value bus.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisCacheConfig configures a RedisCache.
type RedisCacheConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, e.g. "ablink:" — defaults to "ablink:"
}

// NewRedisCache constructs a cache backed by cfg.Addr. It does not dial
// eagerly; the first Get or Set establishes the connection pool.
func NewRedisCache(cfg RedisCacheConfig) *RedisCache {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ablink:"
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: 3 * time.Second,
		}),
		prefix: prefix,
	}
}

func (r *RedisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (r *RedisCache) Set(key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.client.Set(ctx, r.prefix+key, value, ttl)
}

func (r *RedisCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.client.Del(ctx, r.prefix+key)
}

// Close releases the underlying connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

var gatewayReadCache = struct {
	mu     sync.Mutex
	caches map[string]ReadCache
}{caches: map[string]ReadCache{}}

// SetGatewayReadCache attaches cache to every tag subsequently created
// against gateway, shared across that gateway's tags the same way
// SetGatewayTelemetry shares a sink. Has no effect on tags already
// created.
func SetGatewayReadCache(gateway string, cache ReadCache) {
	gatewayReadCache.mu.Lock()
	gatewayReadCache.caches[gateway] = cache
	gatewayReadCache.mu.Unlock()
}

func readCacheFor(gateway string) ReadCache {
	gatewayReadCache.mu.Lock()
	defer gatewayReadCache.mu.Unlock()
	return gatewayReadCache.caches[gateway]
}
