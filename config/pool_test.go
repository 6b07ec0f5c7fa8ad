package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")

	cfg := &PoolConfig{Gateways: []GatewayConfig{
		{Name: "line1", Gateway: "192.168.1.10", CPU: CPULogix, ShareSession: true},
		{Name: "line2", Gateway: "192.168.1.11:44818", Path: "1,0", CPU: CPUSLC500, IdleTimeout: 10 * time.Second},
	}}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Gateways) != 2 {
		t.Fatalf("expected 2 gateways, got %d", len(got.Gateways))
	}
	g := got.ByName("line2")
	if g == nil {
		t.Fatal("ByName(line2) = nil")
	}
	if g.CPU.Driver() != "pccc" {
		t.Errorf("line2 driver = %q, want pccc", g.CPU.Driver())
	}
}

func TestEffectiveIdleTimeoutDefault(t *testing.T) {
	g := GatewayConfig{}
	if g.EffectiveIdleTimeout() != DefaultIdleTimeout {
		t.Errorf("EffectiveIdleTimeout() = %v, want %v", g.EffectiveIdleTimeout(), DefaultIdleTimeout)
	}
}

func TestLoadRejectsMissingName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := Save(path, &PoolConfig{Gateways: []GatewayConfig{{Gateway: "1.2.3.4"}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for gateway entry with no name")
	}
}
