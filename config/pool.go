// Package config provides YAML-driven configuration for a pool of PLC
// gateway connections, for deployments that want a declarative file
// instead of building attrstring.CreateOptions by hand per tag.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CPUFamily names the PLC family/CPU dialect a gateway entry speaks.
type CPUFamily string

const (
	CPULogix        CPUFamily = "controllogix"
	CPUCompactLogix CPUFamily = "compactlogix"
	CPUMicro800     CPUFamily = "micro800"
	CPUPLC5         CPUFamily = "plc5"
	CPUSLC500       CPUFamily = "slc500"
	CPUMicroLogix   CPUFamily = "micrologix"
	CPUOmronNJNX    CPUFamily = "omron-njnx"
)

// Driver returns the internal dialect name this CPU family uses.
func (f CPUFamily) Driver() string {
	switch f {
	case CPUPLC5, CPUSLC500, CPUMicroLogix:
		return "pccc"
	case CPUOmronNJNX:
		return "omron"
	default:
		return "logix"
	}
}

// GatewayConfig describes one (gateway, connection-group) coordinator a
// pool will lazily create on first tag reference.
type GatewayConfig struct {
	Name              string        `yaml:"name"`
	Gateway           string        `yaml:"gateway"` // host or host:port
	Path              string        `yaml:"path,omitempty"` // CIP route, e.g. "1,0"
	CPU               CPUFamily     `yaml:"cpu"`
	ShareSession      bool          `yaml:"share_session"`
	ConnectionGroupID int           `yaml:"connection_group_id,omitempty"`
	IdleTimeout       time.Duration `yaml:"idle_timeout,omitempty"`
	ReadCacheMs       int           `yaml:"read_cache_ms,omitempty"`
	ForwardOpenEx     bool          `yaml:"forward_open_ex_enabled,omitempty"`
	Debug             int              `yaml:"debug,omitempty"`
	Telemetry         *TelemetryConfig `yaml:"telemetry,omitempty"`
	ReadCache         *ReadCacheConfig `yaml:"read_cache,omitempty"`
}

// ReadCacheConfig names a shared second-tier read cache this gateway's
// tags consult before a wire round trip. Currently Redis/Valkey only.
type ReadCacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
	KeyPrefix     string `yaml:"key_prefix,omitempty"`
}

// TelemetryConfig names at most one side-channel sink a gateway's
// coordinator publishes read/write events to. Kafka and MQTT are mutually
// exclusive per gateway; set whichever the deployment's event pipeline uses.
type TelemetryConfig struct {
	Kafka *KafkaTelemetryConfig `yaml:"kafka,omitempty"`
	MQTT  *MQTTTelemetryConfig  `yaml:"mqtt,omitempty"`
}

// KafkaTelemetryConfig configures a telemetry.KafkaSink.
type KafkaTelemetryConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty"`
}

// MQTTTelemetryConfig configures a telemetry.MQTTSink.
type MQTTTelemetryConfig struct {
	Broker    string `yaml:"broker"`
	ClientID  string `yaml:"client_id"`
	RootTopic string `yaml:"root_topic"`
	QoS       byte   `yaml:"qos,omitempty"`
	Retain    bool   `yaml:"retain,omitempty"`
}

// DefaultIdleTimeout matches the coordinator's own default so a pool
// entry that omits IdleTimeout gets identical behavior to an attribute
// string that omits idle_timeout_ms.
const DefaultIdleTimeout = 5000 * time.Millisecond

// EffectiveIdleTimeout returns g.IdleTimeout or DefaultIdleTimeout.
func (g *GatewayConfig) EffectiveIdleTimeout() time.Duration {
	if g.IdleTimeout <= 0 {
		return DefaultIdleTimeout
	}
	return g.IdleTimeout
}

// PoolConfig is the top-level document: a named set of gateways.
type PoolConfig struct {
	Gateways []GatewayConfig `yaml:"gateways"`
}

// Load reads and parses a pool configuration file.
func Load(path string) (*PoolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg PoolConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	for i := range cfg.Gateways {
		if cfg.Gateways[i].Name == "" {
			return nil, fmt.Errorf("config: gateway entry %d missing name", i)
		}
		if cfg.Gateways[i].Gateway == "" {
			return nil, fmt.Errorf("config: gateway entry %q missing gateway address", cfg.Gateways[i].Name)
		}
	}
	return &cfg, nil
}

// Save writes cfg to path in YAML form.
func Save(path string, cfg *PoolConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ByName returns the gateway entry with the given name, or nil.
func (c *PoolConfig) ByName(name string) *GatewayConfig {
	for i := range c.Gateways {
		if c.Gateways[i].Name == name {
			return &c.Gateways[i]
		}
	}
	return nil
}
