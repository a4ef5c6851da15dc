package power

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// MQTTSource reads raw power codes published on an MQTT topic, for hosts
// whose power notifications are bridged from elsewhere.
//
// Payload: the integer code as text, e.g. "4" for suspend.
type MQTTSource struct {
	client Subscriber
	topic  string
	qos    byte

	mu      sync.Mutex
	started bool
}

// NewMQTTSource creates a source subscribed to topic once started.
func NewMQTTSource(client Subscriber, topic string, qos byte) *MQTTSource {
	return &MQTTSource{client: client, topic: topic, qos: qos}
}

// Name returns "mqtt".
func (s *MQTTSource) Name() string { return SourceMQTT }

// Start subscribes to the power topic.
func (s *MQTTSource) Start(ctx context.Context, out chan<- Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	err := s.client.Subscribe(s.topic, s.qos, func(_ string, payload []byte) error {
		if ctx.Err() != nil {
			return nil
		}
		code, err := strconv.Atoi(strings.TrimSpace(string(payload)))
		if err != nil {
			return fmt.Errorf("power: invalid code payload %q", payload)
		}
		if !deliver(out, NewEvent(SourceMQTT, code)) {
			return fmt.Errorf("power: event queue full, dropped code %d", code)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribe, s.topic, err)
	}
	s.started = true
	return nil
}

// Stop unsubscribes.
func (s *MQTTSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false
	return s.client.Unsubscribe(s.topic)
}
