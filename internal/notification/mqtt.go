package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/loghealer/healthmon/internal/conf"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/logger"
)

// DefaultMQTTTopic is the base topic when none is configured.
const DefaultMQTTTopic = "healthmon/alerts"

// mqttPayload is the JSON document published per notification.
type mqttPayload struct {
	Kind        Kind       `json:"kind"`
	AlertID     uint       `json:"alert_id"`
	RuleID      uint       `json:"rule_id"`
	AlertType   string     `json:"alert_type"`
	Service     string     `json:"service"`
	Subject     string     `json:"subject"`
	Message     string     `json:"message"`
	TriggeredAt time.Time  `json:"triggered_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// MQTTProvider publishes notifications to <topic>/<kind>/<service>.
type MQTTProvider struct {
	client  paho.Client
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
	log     logger.Logger

	mu sync.Mutex
}

// NewMQTTProvider creates a provider for the configured broker. The
// connection is made on first use.
func NewMQTTProvider(settings conf.MQTTSettings, timeout time.Duration, log logger.Logger) *MQTTProvider {
	opts := paho.NewClientOptions()
	opts.AddBroker(settings.Broker)
	clientID := settings.ClientID
	if clientID == "" {
		clientID = "healthmon"
	}
	opts.SetClientID(clientID)
	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	return newMQTTProvider(paho.NewClient(opts), settings.Topic, settings.QoS, settings.Retain, timeout, log)
}

func newMQTTProvider(client paho.Client, topic string, qos byte, retain bool, timeout time.Duration, log logger.Logger) *MQTTProvider {
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &MQTTProvider{
		client:  client,
		topic:   strings.TrimSuffix(topic, "/"),
		qos:     qos,
		retain:  retain,
		timeout: timeout,
		log:     log.Module("notification.mqtt"),
	}
}

func (p *MQTTProvider) GetName() string { return "mqtt" }
func (p *MQTTProvider) IsEnabled() bool { return true }

func (p *MQTTProvider) ValidateConfig() error {
	if p.qos > 2 {
		return errors.Newf("mqtt qos must be 0, 1 or 2, got %d", p.qos).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Topic returns the topic a notification is published to.
func (p *MQTTProvider) Topic(n *Notification) string {
	return fmt.Sprintf("%s/%s/%s", p.topic, n.Kind, n.ServiceName)
}

func (p *MQTTProvider) Send(ctx context.Context, n *Notification) error {
	if err := p.connect(); err != nil {
		return err
	}

	payload, err := json.Marshal(mqttPayload{
		Kind:        n.Kind,
		AlertID:     n.AlertID,
		RuleID:      n.RuleID,
		AlertType:   string(n.AlertType),
		Service:     n.ServiceName,
		Subject:     n.Subject,
		Message:     n.Message,
		TriggeredAt: n.TriggeredAt,
		ResolvedAt:  n.ResolvedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode mqtt payload: %w", err)
	}

	topic := p.Topic(n)
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish to %s aborted: %w", topic, ctx.Err())
	case <-time.After(p.timeout):
		return fmt.Errorf("mqtt publish to %s timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s failed: %w", topic, err)
	}
	p.log.Debug("notification published", logger.String("topic", topic))
	return nil
}

func (p *MQTTProvider) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client.IsConnected() {
		return nil
	}
	token := p.client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return errors.Newf("mqtt connect timed out after %s", p.timeout).
			Component("notification").
			Category(errors.CategoryNetwork).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("mqtt connect failed: %w", err)).
			Component("notification").
			Category(errors.CategoryNetwork).
			Build()
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
