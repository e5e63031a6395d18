package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	deviceUC "ota-fleet-manager/internal/usecase/device"
	rolloutUC "ota-fleet-manager/internal/usecase/rollout"
	pkgmqtt "ota-fleet-manager/pkg/mqtt"
)

// MQTTIngestionConfig describes the topics and MQTT connection parameters.
type MQTTIngestionConfig struct {
	ClientConfig   *pkgmqtt.Config
	HeartbeatTopic string
	ProgressTopic  string
	ResultTopic    string
	QoS            byte
}

// MQTTIngestionClient wires fleet telemetry into the device and rollout
// use cases. Messages carry the same transitions the HTTP API exposes, so
// a broker outage degrades to operator-driven updates rather than data loss.
type MQTTIngestionClient struct {
	cfg      *MQTTIngestionConfig
	client   *pkgmqtt.Client
	devices  *deviceUC.Service
	rollouts *rolloutUC.Service

	mu            sync.Mutex
	started       bool
	subscriptions []string
}

// NewMQTTIngestionClient builds a new MQTT client for ingestion.
func NewMQTTIngestionClient(cfg *MQTTIngestionConfig, devices *deviceUC.Service, rollouts *rolloutUC.Service) (*MQTTIngestionClient, error) {
	if cfg == nil || cfg.ClientConfig == nil {
		return nil, errors.New("mqtt ingestion config is not configured")
	}
	if devices == nil || rollouts == nil {
		return nil, errors.New("device and rollout services are required")
	}

	client := pkgmqtt.NewClient(cfg.ClientConfig)
	return &MQTTIngestionClient{
		cfg:      cfg,
		client:   client,
		devices:  devices,
		rollouts: rollouts,
	}, nil
}

// Start establishes the MQTT connection and subscribes to the topics.
func (c *MQTTIngestionClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	type subscription struct {
		topic   string
		handler pkgmqtt.MessageHandler
	}

	subs := []subscription{}
	if c.cfg.HeartbeatTopic != "" {
		subs = append(subs, subscription{
			topic:   c.cfg.HeartbeatTopic,
			handler: c.handleHeartbeatMessage,
		})
	}
	if c.cfg.ProgressTopic != "" {
		subs = append(subs, subscription{
			topic:   c.cfg.ProgressTopic,
			handler: c.handleProgressMessage,
		})
	}
	if c.cfg.ResultTopic != "" {
		subs = append(subs, subscription{
			topic:   c.cfg.ResultTopic,
			handler: c.handleResultMessage,
		})
	}

	if len(subs) == 0 {
		return errors.New("no MQTT topics configured for ingestion")
	}

	qos := c.cfg.QoS
	for _, sub := range subs {
		if err := c.client.Subscribe(sub.topic, qos, sub.handler); err != nil {
			c.client.Disconnect()
			return fmt.Errorf("subscribe failed for topic %s: %w", sub.topic, err)
		}
		c.subscriptions = append(c.subscriptions, sub.topic)
		log.Printf("📡 Listening for MQTT messages on %s", sub.topic)
	}

	c.started = true
	return nil
}

// Stop unsubscribes and disconnects from the broker.
func (c *MQTTIngestionClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}

	if len(c.subscriptions) > 0 {
		if err := c.client.Unsubscribe(c.subscriptions...); err != nil {
			log.Printf("failed to unsubscribe from MQTT topics: %v", err)
		}
	}

	c.client.Disconnect()
	c.started = false
	c.subscriptions = nil
}

// handleHeartbeatMessage refreshes the device's last-seen time. The fleet id
// comes from the topic; the payload device_id wins when both are present.
func (c *MQTTIngestionClient) handleHeartbeatMessage(topic string, payload []byte) {
	msg, err := ParseHeartbeat(payload)
	if err != nil {
		log.Printf("invalid heartbeat payload on %s: %v", topic, err)
		return
	}

	fleetID := msg.DeviceID
	if fleetID == "" {
		fleetID = FleetIDFromTopic(topic)
	}
	if fleetID == "" {
		log.Printf("heartbeat without device id on %s, dropping", topic)
		return
	}

	if err := c.devices.Heartbeat(context.Background(), fleetID); err != nil {
		log.Printf("heartbeat for unknown device %s: %v", fleetID, err)
	}
}

// handleProgressMessage advances the rollout named in the payload.
func (c *MQTTIngestionClient) handleProgressMessage(topic string, payload []byte) {
	msg, err := ParseProgress(payload)
	if err != nil {
		log.Printf("invalid progress payload on %s: %v", topic, err)
		return
	}

	if _, err := c.rollouts.Advance(context.Background(), msg.RolloutID, &rolloutUC.AdvanceRequest{Progress: msg.Progress}); err != nil {
		log.Printf("progress report rejected for rollout %s: %v", msg.RolloutID, err)
	}
}

// handleResultMessage finalizes the rollout named in the payload.
func (c *MQTTIngestionClient) handleResultMessage(topic string, payload []byte) {
	msg, err := ParseResult(payload)
	if err != nil {
		log.Printf("invalid result payload on %s: %v", topic, err)
		return
	}

	if _, err := c.rollouts.Complete(context.Background(), msg.RolloutID, &rolloutUC.CompleteRequest{Success: msg.Success, Reason: msg.Error}); err != nil {
		log.Printf("result report rejected for rollout %s: %v", msg.RolloutID, err)
	}
}
