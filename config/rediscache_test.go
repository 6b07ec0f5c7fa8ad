package config

import "testing"

func TestApplyReadCachesSkipsGatewaysWithoutABlock(t *testing.T) {
	cfg := &PoolConfig{Gateways: []GatewayConfig{
		{Name: "line1", Gateway: "192.168.1.10", CPU: CPULogix},
	}}
	if err := ApplyReadCaches(cfg); err != nil {
		t.Fatalf("ApplyReadCaches: %v", err)
	}
}

func TestApplyReadCachesRejectsMissingAddr(t *testing.T) {
	cfg := &PoolConfig{Gateways: []GatewayConfig{
		{Name: "line1", Gateway: "192.168.1.10", CPU: CPULogix, ReadCache: &ReadCacheConfig{}},
	}}
	if err := ApplyReadCaches(cfg); err == nil {
		t.Fatal("expected an error for a read_cache block with no redis_addr")
	}
}

func TestApplyReadCachesRegistersValidEntry(t *testing.T) {
	cfg := &PoolConfig{Gateways: []GatewayConfig{
		{Name: "line1", Gateway: "192.168.1.10", CPU: CPULogix, ReadCache: &ReadCacheConfig{RedisAddr: "localhost:6379"}},
	}}
	if err := ApplyReadCaches(cfg); err != nil {
		t.Fatalf("ApplyReadCaches: %v", err)
	}
}
