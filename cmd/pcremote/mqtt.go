package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
	mqttQuiesceMS      = 250
)

// mqttPublisher mirrors bus broadcasts to an MQTT broker as JSON on
// <prefix>/<event type>.
type mqttPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
	retain bool
	logger *slog.Logger
}

func newMQTTPublisher(cfg MQTTConfig, logger *slog.Logger) *mqttPublisher {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("mqtt connected", "broker", cfg.Broker)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	return &mqttPublisher{
		client: mqtt.NewClient(opts),
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:    byte(cfg.QoS),
		retain: cfg.Retain,
		logger: logger,
	}
}

func (p *mqttPublisher) topic(b StateBroadcast) string {
	return p.prefix + "/" + broadcastType(b)
}

// publish sends one broadcast. It waits at most mqttPublishTimeout for the ack.
func (p *mqttPublisher) publish(b StateBroadcast) error {
	if broadcastType(b) == "" {
		return nil
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", broadcastType(b), err)
	}
	tok := p.client.Publish(p.topic(b), p.qos, p.retain, payload)
	if !tok.WaitTimeout(mqttPublishTimeout) {
		return errors.New("mqtt publish timed out")
	}
	return tok.Error()
}

// Run connects and publishes from src until ctx is canceled or src closes.
// With SetConnectRetry the first connect keeps retrying in the background.
func (p *mqttPublisher) Run(ctx context.Context, src <-chan StateBroadcast) error {
	tok := p.client.Connect()
	if tok.WaitTimeout(mqttConnectTimeout) && tok.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", tok.Error())
	}
	defer p.client.Disconnect(mqttQuiesceMS)

	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-src:
			if !ok {
				return nil
			}
			if err := p.publish(b); err != nil {
				p.logger.Warn("mqtt publish failed", "topic", p.topic(b), "error", err)
			}
		}
	}
}
