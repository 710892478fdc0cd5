package transport

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/knobgrid/knobgrid-core/internal/infrastructure/logging"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/mqtt"
	"github.com/knobgrid/knobgrid-core/internal/protocol"
)

// Bus is the slice of the MQTT client the bridge needs. Satisfied by
// *mqtt.Client.
type Bus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	PublishResponse(payload []byte) error
}

// MQTTBridge maps the broker onto the protocol engine: payloads arriving on
// the device's command topic are fed into a session, and whatever the
// session writes back is published to the response topic.
//
// One session serves all publishers, so remote controllers share parser
// mode the way they would share a single serial cable. Handlers may run
// concurrently in paho goroutines; the bridge serializes them.
type MQTTBridge struct {
	engine   *protocol.Engine
	bus      Bus
	deviceID string
	qos      byte
	logger   *logging.Logger

	mu      sync.Mutex
	session *protocol.Session
	out     bytes.Buffer
}

// NewMQTTBridge creates a bridge for the given device identity.
func NewMQTTBridge(engine *protocol.Engine, bus Bus, deviceID string, qos byte, logger *logging.Logger) *MQTTBridge {
	b := &MQTTBridge{
		engine:   engine,
		bus:      bus,
		deviceID: deviceID,
		qos:      qos,
		logger:   logger.With("transport", "mqtt"),
	}
	b.session = engine.NewSession(&b.out)
	b.session.SetSource("mqtt")
	return b
}

// Start subscribes to the device's command topic.
func (b *MQTTBridge) Start() error {
	topic := mqtt.Topics{}.Command(b.deviceID)
	if err := b.bus.Subscribe(topic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.logger.Info("mqtt transport subscribed", "topic", topic)
	return nil
}

// Stop unsubscribes from the command topic.
func (b *MQTTBridge) Stop() error {
	return b.bus.Unsubscribe(mqtt.Topics{}.Command(b.deviceID))
}

// handleCommand feeds one payload through the session and publishes any
// response it produced. Empty responses (basic-mode bytes with nothing to
// say) publish nothing.
func (b *MQTTBridge) handleCommand(_ string, payload []byte) error {
	b.mu.Lock()
	b.out.Reset()
	b.session.Write(payload) //nolint:errcheck // Session writes never fail
	response := make([]byte, b.out.Len())
	copy(response, b.out.Bytes())
	b.mu.Unlock()

	if len(response) == 0 {
		return nil
	}

	if err := b.bus.PublishResponse(response); err != nil {
		return fmt.Errorf("publishing response: %w", err)
	}
	return nil
}
