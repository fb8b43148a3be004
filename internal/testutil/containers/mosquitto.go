//go:build integration

package containers

import (
	"context"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DefaultMosquittoImage is the broker image used by NewMosquittoContainer.
const DefaultMosquittoImage = "eclipse-mosquitto:2.0"

const anonymousConfig = `listener 1883
allow_anonymous true
`

// MosquittoContainer is a running MQTT broker accepting anonymous clients.
type MosquittoContainer struct {
	container testcontainers.Container
	brokerURL string
}

// NewMosquittoContainer starts the broker and waits until it accepts clients.
func NewMosquittoContainer(ctx context.Context) (*MosquittoContainer, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        DefaultMosquittoImage,
			ExposedPorts: []string{"1883/tcp"},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto/config/test.conf"},
			Files: []testcontainers.ContainerFile{{
				Reader:            strings.NewReader(anonymousConfig),
				ContainerFilePath: "/mosquitto/config/test.conf",
				FileMode:          0o644,
			}},
			WaitingFor: wait.ForListeningPort("1883/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start mosquitto container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "1883/tcp", "tcp")
	if err != nil {
		_ = container.Terminate(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to get mosquitto endpoint: %w", err)
	}
	return &MosquittoContainer{container: container, brokerURL: endpoint}, nil
}

// BrokerURL returns the tcp:// URL of the broker.
func (c *MosquittoContainer) BrokerURL() string {
	return c.brokerURL
}

// Subscribe connects a separate client and delivers every message published
// on topic to the returned channel until the test ends.
func (c *MosquittoContainer) Subscribe(topic, clientID string) (<-chan paho.Message, func(), error) {
	opts := paho.NewClientOptions().
		AddBroker(c.brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(false)
	client := paho.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return nil, nil, fmt.Errorf("subscriber connect failed: %w", token.Error())
	}

	messages := make(chan paho.Message, 16)
	token := client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		messages <- msg
	})
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		client.Disconnect(100)
		return nil, nil, fmt.Errorf("subscribe to %s failed: %w", topic, token.Error())
	}
	return messages, func() { client.Disconnect(250) }, nil
}

// Terminate stops and removes the container.
func (c *MosquittoContainer) Terminate(ctx context.Context) error {
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate mosquitto container: %w", err)
	}
	return nil
}
