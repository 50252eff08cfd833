package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPusher publishes the payload to a broker topic.
type MQTTPusher struct {
	client  paho.Client
	topic   string
	timeout time.Duration
}

// NewMQTTPusher starts connecting to broker in the background; publishes fail
// fast until the connection is up. A zero timeout waits for the broker's
// acknowledgement indefinitely.
func NewMQTTPusher(broker, topic, clientID string, timeout time.Duration, logger *slog.Logger) *MQTTPusher {
	if logger == nil {
		logger = slog.Default()
	}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			logger.Info("mqtt connected", "broker", broker)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "broker", broker, "error", err)
		})

	client := paho.NewClient(opts)
	client.Connect()

	return &MQTTPusher{client: client, topic: topic, timeout: timeout}
}

// Push publishes at QoS 1 and waits for the acknowledgement.
func (p *MQTTPusher) Push(ctx context.Context, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("mqtt: not connected")
	}

	token := p.client.Publish(p.topic, 1, false, payload)

	var done <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		done = timer.C
	}

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return fmt.Errorf("mqtt: publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPusher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
