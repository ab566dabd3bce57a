package notifier

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mattmezza/biopatch/internal/config"
)

const mqttTimeout = 5 * time.Second

// mqttClient is the part of mqtt.Client the notifier uses.
type mqttClient interface {
	IsConnected() bool
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTNotifier publishes each notification as a JSON document. The broker
// connection is opened on first use and kept.
type MQTTNotifier struct {
	name   string
	config config.MQTTChannelConfig

	mu     sync.Mutex
	client mqttClient
}

type mqttPayload struct {
	NotificationData
	Message string `json:"message"`
}

func NewMQTTNotifier(name string, cfg config.MQTTChannelConfig) (*MQTTNotifier, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt notifier '%s' is missing broker", name)
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(mqttTimeout)

	return newMQTTNotifier(name, cfg, mqtt.NewClient(opts)), nil
}

func newMQTTNotifier(name string, cfg config.MQTTChannelConfig, client mqttClient) *MQTTNotifier {
	return &MQTTNotifier{name: name, config: cfg, client: client}
}

func (mn *MQTTNotifier) Name() string {
	return mn.name
}

func (mn *MQTTNotifier) Send(data NotificationData, templates NotificationTemplates) error {
	msg, err := renderTemplate("mqtt_message", templates.forState(data.State), data)
	if err != nil {
		return fmt.Errorf("failed to render mqtt template for '%s': %w", data.Title, err)
	}
	payload, err := json.Marshal(mqttPayload{NotificationData: data, Message: msg})
	if err != nil {
		return fmt.Errorf("failed to marshal mqtt payload: %w", err)
	}

	mn.mu.Lock()
	defer mn.mu.Unlock()

	if !mn.client.IsConnected() {
		if err := waitToken(mn.client.Connect()); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker %s: %w", mn.config.Broker, err)
		}
	}
	if err := waitToken(mn.client.Publish(mn.config.Topic, mn.config.QoS, mn.config.Retained, payload)); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", mn.config.Topic, err)
	}
	return nil
}

// Close disconnects from the broker if a connection was made.
func (mn *MQTTNotifier) Close() {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	if mn.client.IsConnected() {
		mn.client.Disconnect(250)
	}
}

func waitToken(token mqtt.Token) error {
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("timed out after %s", mqttTimeout)
	}
	return token.Error()
}
