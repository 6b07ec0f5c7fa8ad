package telemetry

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/yatesdr/ablink/logging"
)

// MQTTConfig configures an MQTTSink.
type MQTTConfig struct {
	Broker    string // e.g. "tcp://localhost:1883"
	ClientID  string
	RootTopic string // events publish under RootTopic/<gateway>/<tag>
	QoS       byte   // 0, 1, or 2
	Retain    bool
}

// MQTTSink publishes tag events to an MQTT broker under a per-tag topic.
type MQTTSink struct {
	client pahomqtt.Client
	cfg    MQTTConfig
	mu     sync.Mutex
	closed bool
}

// NewMQTTSink connects to cfg.Broker and returns a ready sink.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	client := pahomqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, tok.Error()
	}
	return &MQTTSink{client: client, cfg: cfg}, nil
}

func (m *MQTTSink) Publish(e Event) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		logging.DebugLog("telemetry", "mqtt marshal error: %v", err)
		return
	}
	topic := fmt.Sprintf("%s/%s/%s", m.cfg.RootTopic, e.Gateway, e.TagName)
	tok := m.client.Publish(topic, m.cfg.QoS, m.cfg.Retain, payload)
	go func() {
		tok.Wait()
		if err := tok.Error(); err != nil {
			logging.DebugLog("telemetry", "mqtt publish error: %v", err)
		}
	}()
}

func (m *MQTTSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.client.Disconnect(250)
	return nil
}
