package broadcast

import (
	"fmt"
	"time"

	"github.com/nerrad567/chroma-sync/internal/device"
)

// Status is the broadcast connectivity state.
type Status string

// Connectivity states.
const (
	Live    Status = "live"
	NotLive Status = "not_live"
)

// Label is the text shown to the user for s.
func (s Status) Label() string {
	if s == Live {
		return "Connected"
	}
	return "Disconnected"
}

// ParseStatus accepts "live", "not_live" and the labels.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "live", "Live", "Connected":
		return Live, nil
	case "not_live", "notlive", "NotLive", "Disconnected":
		return NotLive, nil
	default:
		return "", fmt.Errorf("%w: status %q", ErrInvalidPayload, s)
	}
}

// EventType tells which half of an Event is set.
type EventType string

// Event types.
const (
	TypeEffect EventType = "effect"
	TypeStatus EventType = "status"
)

// Event is one normalized broadcast notification: either a color effect
// or a connectivity status.
type Event struct {
	Type   EventType          `json:"type"`
	Effect device.ColorEffect `json:"effect"`
	Status Status             `json:"status,omitempty"`
	At     time.Time          `json:"at"`
}

// EffectEvent wraps a color effect.
func EffectEvent(effect device.ColorEffect) Event {
	return Event{Type: TypeEffect, Effect: effect, At: time.Now()}
}

// StatusEvent wraps a connectivity status.
func StatusEvent(status Status) Event {
	return Event{Type: TypeStatus, Status: status, At: time.Now()}
}

// ColorPolicy decides what happens to channel values outside 0..255 from
// loosely typed sources. Native sources deliver bytes and never need it.
type ColorPolicy string

// Color policies.
const (
	PolicyClamp  ColorPolicy = "clamp"
	PolicyReject ColorPolicy = "reject"
)

// ParsePolicy returns the policy named s. An empty string means clamp.
func ParsePolicy(s string) (ColorPolicy, error) {
	switch s {
	case "", string(PolicyClamp):
		return PolicyClamp, nil
	case string(PolicyReject):
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("broadcast: unknown color policy %q", s)
	}
}

// Channel converts one channel value under the policy.
func (p ColorPolicy) Channel(v int) (uint8, error) {
	if v >= 0 && v <= 255 {
		return uint8(v), nil
	}
	if p == PolicyReject {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, v)
	}
	if v < 0 {
		return 0, nil
	}
	return 255, nil
}

// Effect builds a ColorEffect from exactly four [r,g,b] triples.
func (p ColorPolicy) Effect(triples [][]int) (device.ColorEffect, error) {
	var effect device.ColorEffect
	if len(triples) != device.ZoneCount {
		return effect, fmt.Errorf("%w: want %d colors, got %d", ErrInvalidPayload, device.ZoneCount, len(triples))
	}
	for i, t := range triples {
		if len(t) != 3 {
			return effect, fmt.Errorf("%w: color %d has %d channels", ErrInvalidPayload, i, len(t))
		}
		var ch [3]uint8
		for j, v := range t {
			c, err := p.Channel(v)
			if err != nil {
				return effect, fmt.Errorf("color %d: %w", i, err)
			}
			ch[j] = c
		}
		effect[i] = device.RGB{R: ch[0], G: ch[1], B: ch[2]}
	}
	return effect, nil
}

// colorRef decodes a Windows COLORREF (0x00BBGGRR).
func colorRef(v uint32) device.RGB {
	return device.RGB{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16)}
}

// effectFromLinks maps the five Chroma Link colors to a ColorEffect.
// Link 1 is not used; links 2 to 5 become zones 1 to 4.
func effectFromLinks(links [5]uint32) device.ColorEffect {
	return device.ColorEffect{
		colorRef(links[1]),
		colorRef(links[2]),
		colorRef(links[3]),
		colorRef(links[4]),
	}
}
