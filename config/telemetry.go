package config

import (
	"fmt"

	"github.com/yatesdr/ablink/tag"
	"github.com/yatesdr/ablink/telemetry"
)

// ApplyTelemetry builds a sink for every gateway entry in cfg that carries
// a Telemetry block and registers it against that gateway's address via
// tag.SetGatewayTelemetry. Call it once after Load, before creating any
// tag that names one of these gateways — registration has no effect on a
// coordinator that's already running.
func ApplyTelemetry(cfg *PoolConfig) error {
	for _, gw := range cfg.Gateways {
		if gw.Telemetry == nil {
			continue
		}
		sink, err := buildSink(gw.Name, gw.Telemetry)
		if err != nil {
			return err
		}
		tag.SetGatewayTelemetry(gw.Gateway, sink)
	}
	return nil
}

// ApplyReadCaches builds a tag.RedisCache for every gateway entry in cfg
// that carries a ReadCache block and registers it against that gateway's
// address via tag.SetGatewayReadCache, so every tag naming that gateway
// consults the shared cache before the gateway itself.
func ApplyReadCaches(cfg *PoolConfig) error {
	for _, gw := range cfg.Gateways {
		if gw.ReadCache == nil {
			continue
		}
		if gw.ReadCache.RedisAddr == "" {
			return fmt.Errorf("config: gateway %q: read_cache missing redis_addr", gw.Name)
		}
		cache := tag.NewRedisCache(tag.RedisCacheConfig{
			Addr:     gw.ReadCache.RedisAddr,
			Password: gw.ReadCache.RedisPassword,
			DB:       gw.ReadCache.RedisDB,
			Prefix:   gw.ReadCache.KeyPrefix,
		})
		tag.SetGatewayReadCache(gw.Gateway, cache)
	}
	return nil
}

func buildSink(gatewayName string, cfg *TelemetryConfig) (telemetry.Sink, error) {
	switch {
	case cfg.Kafka != nil && cfg.MQTT != nil:
		return nil, fmt.Errorf("config: gateway %q: telemetry may name kafka or mqtt, not both", gatewayName)

	case cfg.Kafka != nil:
		return telemetry.NewKafkaSink(telemetry.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}), nil

	case cfg.MQTT != nil:
		sink, err := telemetry.NewMQTTSink(telemetry.MQTTConfig{
			Broker:    cfg.MQTT.Broker,
			ClientID:  cfg.MQTT.ClientID,
			RootTopic: cfg.MQTT.RootTopic,
			QoS:       cfg.MQTT.QoS,
			Retain:    cfg.MQTT.Retain,
		})
		if err != nil {
			return nil, fmt.Errorf("config: gateway %q: mqtt sink: %w", gatewayName, err)
		}
		return sink, nil

	default:
		return nil, fmt.Errorf("config: gateway %q: telemetry block is empty", gatewayName)
	}
}
