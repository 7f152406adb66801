package mqtt

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tigpsd/internal/sink"
)

type Config struct {
	Broker   string
	ClientID string
	Topic    string
}

// Publisher pushes fix updates to an MQTT broker as JSON. Messages
// are retained so late subscribers immediately see the last fix.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// newClientFn is swapped out in tests.
var newClientFn = mqtt.NewClient

func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt topic is required")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID)

	client := newClientFn(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return &Publisher{client: client, topic: cfg.Topic}, nil
}

func (p *Publisher) PublishFix(fix sink.Fix) error {
	payload, err := json.Marshal(fix)
	if err != nil {
		return fmt.Errorf("marshal fix: %w", err)
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	token.Wait()
	return token.Error()
}

func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Disconnect(250)
}
