package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/chroma-sync/internal/infrastructure/mqtt"
)

// Source is a broadcast feed. The lifecycle is Init, Subscribe, then
// Unsubscribe and Close. Sources deliver on out without blocking; the
// caller sizes the channel.
type Source interface {
	Name() string
	Init(ctx context.Context, appID string) error
	Subscribe(out chan<- Event) error
	Unsubscribe() error
	Close() error
}

// Source names accepted by NewSource.
const (
	SourceChroma = "chroma"
	SourceMQTT   = "mqtt"
	SourceNone   = "none"
)

// Subscriber is the MQTT capability the mqtt source needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Options carries the collaborators a source may need.
type Options struct {
	// DLL is the broadcast SDK library name for the chroma source.
	DLL string

	MQTT   Subscriber
	Topic  string
	QoS    byte
	Policy ColorPolicy
}

// NewSource returns the source named by name.
func NewSource(name string, opts Options) (Source, error) {
	switch name {
	case SourceNone, "":
		return NoneSource{}, nil
	case SourceChroma:
		return newChromaSource(opts.DLL), nil
	case SourceMQTT:
		if opts.MQTT == nil {
			return nil, fmt.Errorf("%w: mqtt source needs an mqtt client", ErrUnsupported)
		}
		return NewMQTTSource(opts.MQTT, opts.Topic, opts.QoS, opts.Policy), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
}

// NoneSource never delivers events.
type NoneSource struct{}

func (NoneSource) Name() string                       { return SourceNone }
func (NoneSource) Init(context.Context, string) error { return nil }
func (NoneSource) Subscribe(chan<- Event) error       { return nil }
func (NoneSource) Unsubscribe() error                 { return nil }
func (NoneSource) Close() error                       { return nil }

// ParseAppID validates a broadcast app identifier. Braces are optional.
func ParseAppID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, fmt.Errorf("%w: empty", ErrInvalidAppID)
	}
	id, err := uuid.Parse(strings.Trim(s, "{}"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidAppID, err)
	}
	return id, nil
}

// deliver hands ev to out without blocking. It reports whether ev was accepted.
func deliver(out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	default:
		return false
	}
}
