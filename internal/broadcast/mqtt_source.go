package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MQTTSource reads broadcast notifications published as JSON on a topic.
//
// Payloads:
//
//	{"colors": [[255,0,0],[0,255,0],[0,0,255],[255,255,255]]}
//	{"status": "live"}
//
// Channel values outside 0..255 are handled by the source's ColorPolicy.
type MQTTSource struct {
	client Subscriber
	topic  string
	qos    byte
	policy ColorPolicy

	mu          sync.Mutex
	initialized bool
	subscribed  bool
}

// NewMQTTSource creates a source for topic.
func NewMQTTSource(client Subscriber, topic string, qos byte, policy ColorPolicy) *MQTTSource {
	if policy == "" {
		policy = PolicyClamp
	}
	return &MQTTSource{client: client, topic: topic, qos: qos, policy: policy}
}

// Name returns "mqtt".
func (s *MQTTSource) Name() string { return SourceMQTT }

// Init marks the source ready. The app id is not used by this source.
func (s *MQTTSource) Init(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	return nil
}

type mqttPayload struct {
	Colors [][]int `json:"colors"`
	Status string  `json:"status"`
}

// Decode parses one payload under the source's policy.
func (s *MQTTSource) Decode(payload []byte) (Event, error) {
	var p mqttPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	switch {
	case p.Colors != nil && p.Status != "":
		return Event{}, fmt.Errorf("%w: both colors and status set", ErrInvalidPayload)
	case p.Colors != nil:
		effect, err := s.policy.Effect(p.Colors)
		if err != nil {
			return Event{}, err
		}
		return EffectEvent(effect), nil
	case p.Status != "":
		status, err := ParseStatus(p.Status)
		if err != nil {
			return Event{}, err
		}
		return StatusEvent(status), nil
	default:
		return Event{}, fmt.Errorf("%w: neither colors nor status set", ErrInvalidPayload)
	}
}

// Subscribe starts delivering decoded messages on out.
func (s *MQTTSource) Subscribe(out chan<- Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if s.subscribed {
		return ErrAlreadySubscribed
	}

	err := s.client.Subscribe(s.topic, s.qos, func(_ string, payload []byte) error {
		ev, err := s.Decode(payload)
		if err != nil {
			return err
		}
		if !deliver(out, ev) {
			return fmt.Errorf("broadcast: event queue full, dropped %s event", ev.Type)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing %s: %w", s.topic, err)
	}
	s.subscribed = true
	return nil
}

// Unsubscribe stops delivery.
func (s *MQTTSource) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.subscribed {
		return nil
	}
	s.subscribed = false
	return s.client.Unsubscribe(s.topic)
}

// Close releases the source.
func (s *MQTTSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	return nil
}
