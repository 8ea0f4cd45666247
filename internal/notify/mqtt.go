package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/logging"
	"github.com/sirupsen/logrus"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	qosAtLeastOnce = 1
)

// publisher is the part of mqtt.Client the notifier uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTNotifier publishes events as JSON to an MQTT topic
type MQTTNotifier struct {
	client  publisher
	topic   string
	timeout time.Duration
	log     *logrus.Entry
}

// New returns an MQTT notifier when a broker is configured and Nop otherwise.
func New(cfg config.MQTTConfig) (Notifier, error) {
	if !cfg.Enabled() {
		return Nop{}, nil
	}
	n, err := NewMQTTNotifier(cfg)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// NewMQTTNotifier connects to the configured broker
func NewMQTTNotifier(cfg config.MQTTConfig) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	log := logging.Component("notify").WithField("broker", cfg.Broker)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out after %s", cfg.Broker, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	log.WithField("topic", cfg.Topic).Info("MQTT notifier connected")

	return newMQTTNotifier(client, cfg.Topic, log), nil
}

func newMQTTNotifier(client publisher, topic string, log *logrus.Entry) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, timeout: publishTimeout, log: log}
}

// Publish sends ev at QoS 1 and waits for the broker to acknowledge it
func (n *MQTTNotifier) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	token := n.client.Publish(n.topic, qosAtLeastOnce, false, payload)

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish event for image %d: %w", ev.ImageID, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("publish event for image %d: timed out after %s", ev.ImageID, n.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish event for image %d: %w", ev.ImageID, err)
	}

	n.log.WithFields(logrus.Fields{"topic": n.topic, "image_id": ev.ImageID}).Debug("Published identification event")
	return nil
}

// Close disconnects from the broker
func (n *MQTTNotifier) Close() error {
	n.client.Disconnect(250)
	return nil
}
