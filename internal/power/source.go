package power

import (
	"context"
	"fmt"

	"github.com/nerrad567/chroma-sync/internal/infrastructure/mqtt"
)

// Source delivers power notifications. Start must return promptly and
// deliver events on out until Stop or until ctx ends. Sources never block
// the platform thread that notifies them.
type Source interface {
	Name() string
	Start(ctx context.Context, out chan<- Event) error
	Stop() error
}

// Source names accepted by NewSource.
const (
	SourceAuto    = "auto"
	SourceWindows = "windows"
	SourceLogind  = "logind"
	SourceMQTT    = "mqtt"
	SourceNone    = "none"
)

// Subscriber is the MQTT capability the mqtt source needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Options carries the collaborators a source may need.
type Options struct {
	MQTT  Subscriber
	Topic string
	QoS   byte
}

// NewSource returns the source named by name. "auto" picks the platform
// notification facility, or none when there is no such facility.
func NewSource(name string, opts Options) (Source, error) {
	switch name {
	case SourceNone, "":
		return NoneSource{}, nil
	case SourceMQTT:
		if opts.MQTT == nil {
			return nil, fmt.Errorf("%w: mqtt source needs an mqtt client", ErrUnsupported)
		}
		return NewMQTTSource(opts.MQTT, opts.Topic, opts.QoS), nil
	case SourceAuto, SourceWindows, SourceLogind:
		return platformSource(name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
}

// NoneSource never delivers events.
type NoneSource struct{}

func (NoneSource) Name() string                              { return SourceNone }
func (NoneSource) Start(context.Context, chan<- Event) error { return nil }
func (NoneSource) Stop() error                               { return nil }

// deliver hands ev to out without blocking. It reports whether ev was accepted.
func deliver(out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	default:
		return false
	}
}
