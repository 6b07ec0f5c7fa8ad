package tag

import (
	"testing"
	"time"

	"github.com/yatesdr/ablink/logix"
)

type fakeReadCache struct {
	values map[string][]byte
}

func newFakeReadCache() *fakeReadCache {
	return &fakeReadCache{values: map[string][]byte{}}
}

func (f *fakeReadCache) Get(key string) ([]byte, bool) {
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeReadCache) Set(key string, value []byte, ttl time.Duration) {
	f.values[key] = append([]byte(nil), value...)
}

func (f *fakeReadCache) Delete(key string) {
	delete(f.values, key)
}

func TestSetGatewayReadCacheRegistersByGatewayName(t *testing.T) {
	cache := newFakeReadCache()
	SetGatewayReadCache("10.0.0.5", cache)
	if readCacheFor("10.0.0.5") != cache {
		t.Error("readCacheFor did not return the registered cache")
	}
	if readCacheFor("10.0.0.6") != nil {
		t.Error("readCacheFor should return nil for an unregistered gateway")
	}
}

func TestReadServesFromSharedCacheWithoutARoundTrip(t *testing.T) {
	calls := 0
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		calls++
		return readTagResponse(logix.TypeDINT, []byte{1, 0, 0, 0}), nil
	})
	tag.cacheTTL = time.Minute
	tag.gateway = "10.0.0.7"
	cache := newFakeReadCache()
	cache.Set(tag.cacheKey(), []byte{9, 9, 9, 9}, time.Minute)
	tag.extCache = cache

	if err := tag.Read(0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if calls != 0 {
		t.Errorf("expected the shared cache hit to avoid any round trip, got %d calls", calls)
	}
	if got := tag.Raw(); len(got) != 4 || got[0] != 9 {
		t.Errorf("Raw() = %v, want the shared cache's value", got)
	}
}

func TestReadPopulatesSharedCacheOnMiss(t *testing.T) {
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		return readTagResponse(logix.TypeDINT, []byte{5, 0, 0, 0}), nil
	})
	tag.cacheTTL = time.Minute
	tag.gateway = "10.0.0.8"
	cache := newFakeReadCache()
	tag.extCache = cache

	if err := tag.Read(0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, ok := cache.Get(tag.cacheKey()); !ok {
		t.Error("expected Read to populate the shared cache on a miss")
	}
}

func TestWriteInvalidatesSharedCache(t *testing.T) {
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		return writeTagResponse(logix.SvcWriteTag), nil
	})
	tag.gateway = "10.0.0.9"
	tag.dataType = logix.TypeDINT
	tag.raw = []byte{1, 0, 0, 0}
	cache := newFakeReadCache()
	cache.Set(tag.cacheKey(), []byte{1, 2, 3, 4}, time.Minute)
	tag.extCache = cache

	if err := tag.Write(0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, ok := cache.Get(tag.cacheKey()); ok {
		t.Error("expected Write to invalidate the shared cache entry")
	}
}
