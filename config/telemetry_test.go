package config

import "testing"

func TestBuildSinkRejectsBothKafkaAndMQTT(t *testing.T) {
	cfg := &TelemetryConfig{
		Kafka: &KafkaTelemetryConfig{Brokers: []string{"localhost:9092"}, Topic: "tags"},
		MQTT:  &MQTTTelemetryConfig{Broker: "tcp://localhost:1883"},
	}
	if _, err := buildSink("line1", cfg); err == nil {
		t.Fatal("expected an error when both kafka and mqtt are configured")
	}
}

func TestBuildSinkRejectsEmptyConfig(t *testing.T) {
	if _, err := buildSink("line1", &TelemetryConfig{}); err == nil {
		t.Fatal("expected an error for an empty telemetry block")
	}
}

func TestBuildSinkKafka(t *testing.T) {
	sink, err := buildSink("line1", &TelemetryConfig{
		Kafka: &KafkaTelemetryConfig{Brokers: []string{"localhost:9092"}, Topic: "tags"},
	})
	if err != nil {
		t.Fatalf("buildSink: %v", err)
	}
	if sink == nil {
		t.Fatal("expected a non-nil sink")
	}
	_ = sink.Close()
}

func TestApplyTelemetrySkipsGatewaysWithoutABlock(t *testing.T) {
	cfg := &PoolConfig{Gateways: []GatewayConfig{
		{Name: "line1", Gateway: "192.168.1.10", CPU: CPULogix},
	}}
	if err := ApplyTelemetry(cfg); err != nil {
		t.Fatalf("ApplyTelemetry: %v", err)
	}
}
