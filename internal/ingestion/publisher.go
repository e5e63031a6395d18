package ingestion

import (
	"encoding/json"
	"fmt"

	rolloutUC "ota-fleet-manager/internal/usecase/rollout"
	pkgmqtt "ota-fleet-manager/pkg/mqtt"
)

// CommandPublisher publishes OTA update commands on the per-device command
// topic. It shares the broker connection with the ingestion client's config
// but keeps its own client so publish stalls never block subscriptions.
type CommandPublisher struct {
	client *pkgmqtt.Client
	prefix string
	qos    byte
}

func NewCommandPublisher(cfg *pkgmqtt.Config, prefix string, qos byte) *CommandPublisher {
	return &CommandPublisher{
		client: pkgmqtt.NewClient(cfg),
		prefix: prefix,
		qos:    qos,
	}
}

// Connect establishes the broker connection for publishing.
func (p *CommandPublisher) Connect() error {
	return p.client.Connect()
}

// Disconnect closes the broker connection.
func (p *CommandPublisher) Disconnect() {
	p.client.Disconnect()
}

// PublishUpdateCommand sends the OTA instruction to fleet/{fleetID}/ota/update.
func (p *CommandPublisher) PublishUpdateCommand(fleetID string, cmd *rolloutUC.UpdateCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to encode update command: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/ota/update", p.prefix, fleetID)
	return p.client.Publish(topic, p.qos, false, payload)
}
