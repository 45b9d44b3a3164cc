package mqtt

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConfigured = errors.New("mqtt: no broker configured")
	ErrNotConnected  = errors.New("mqtt: not connected")
)

type IMQTT interface {
	Publish(cameraID string, payload []byte) error
	Disconnect()
}

type client struct {
	client      pahomqtt.Client
	topicPrefix string
	qos         byte

	mu        sync.RWMutex
	connected bool
}

// New connects to MQTT_BROKER (host:port) and publishes alerts under
// <MQTT_TOPIC_PREFIX>/<camera>/alerts.
func New() (IMQTT, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		return nil, ErrNotConfigured
	}
	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = "conveyor-vision"
	}
	prefix := os.Getenv("MQTT_TOPIC_PREFIX")
	if prefix == "" {
		prefix = "conveyor"
	}

	c := &client{topicPrefix: prefix, qos: 1}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(pahomqtt.Client) {
		c.setConnected(true)
		logrus.WithField("broker", broker).Info("MQTT connection established")
	}
	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		c.setConnected(false)
		logrus.WithField("broker", broker).Warnf("MQTT connection lost, will auto-reconnect: %v", err)
	}

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	c.setConnected(true)

	return c, nil
}

func (c *client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *client) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *client) Publish(cameraID string, payload []byte) error {
	if !c.isConnected() {
		return ErrNotConnected
	}

	topic := fmt.Sprintf("%s/%s/alerts", c.topicPrefix, cameraID)
	token := c.client.Publish(topic, c.qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}
	return nil
}

func (c *client) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	c.setConnected(false)
}
