package device

import (
	"context"
	"fmt"
)

// RGB is one color sample. Channels are bytes, so every value is in [0,255].
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// String returns the color as #rrggbb.
func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ZoneCount is the number of color samples in one effect.
const ZoneCount = 4

// ColorEffect holds the four zone colors of one broadcast notification.
// It is an array value; copies never share storage.
type ColorEffect [ZoneCount]RGB

// NewColorEffect builds an effect from four colors.
func NewColorEffect(c1, c2, c3, c4 RGB) ColorEffect {
	return ColorEffect{c1, c2, c3, c4}
}

// Kind identifies a device backend.
type Kind string

// Supported device kinds.
const (
	KindKeyboard Kind = "keyboard"
	KindWLED     Kind = "wled"
)

// AllKinds returns every supported device kind.
func AllKinds() []Kind {
	return []Kind{KindKeyboard, KindWLED}
}

// Lifecycle is the connection-level state of a device instance.
type Lifecycle string

// Lifecycle states.
const (
	Unloaded Lifecycle = "unloaded"
	Loaded   Lifecycle = "loaded"
)

// Op names one capability of the device contract.
type Op string

// Device operations.
const (
	OpLoad       Op = "load"
	OpUnload     Op = "unload"
	OpTurnOn     Op = "turn_on"
	OpTurnOff    Op = "turn_off"
	OpSendColors Op = "send_colors"
)

// ParseOp maps a user-facing operation name to an Op.
// Accepts the canonical names plus the short forms "on" and "off".
func ParseOp(s string) (Op, error) {
	switch s {
	case "load":
		return OpLoad, nil
	case "unload":
		return OpUnload, nil
	case "on", "turn_on":
		return OpTurnOn, nil
	case "off", "turn_off":
		return OpTurnOff, nil
	case "send_colors":
		return OpSendColors, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOp, s)
	}
}

// Device is the capability contract every backend implements.
// Callers never branch on the concrete type.
//
// Load and Unload open and release the underlying connection. TurnOn and
// TurnOff switch the light output without releasing the connection.
// Every method except ID and Kind returns ErrNotLoaded when the instance
// is unloaded and must honour ctx as its I/O deadline.
type Device interface {
	ID() string
	Kind() Kind
	Load(ctx context.Context) error
	Unload(ctx context.Context) error
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	SendColors(ctx context.Context, effect ColorEffect) error
}

// call invokes op on d.
func call(ctx context.Context, d Device, op Op, effect ColorEffect) error {
	switch op {
	case OpLoad:
		return d.Load(ctx)
	case OpUnload:
		return d.Unload(ctx)
	case OpTurnOn:
		return d.TurnOn(ctx)
	case OpTurnOff:
		return d.TurnOff(ctx)
	case OpSendColors:
		return d.SendColors(ctx, effect)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOp, op)
	}
}

// Config is the persisted configuration of one device instance.
// It is immutable once registered; reconfiguration builds a new instance.
type Config struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Kind     Kind            `json:"kind"`
	Position int             `json:"position"`
	Keyboard *KeyboardConfig `json:"keyboard,omitempty"`
	WLED     *WLEDConfig     `json:"wled,omitempty"`
}

// KeyboardConfig holds HID connection parameters for a keyboard backlight.
type KeyboardConfig struct {
	// Path is the HID device path. Empty means probe by vendor/product.
	Path      string `json:"path,omitempty"`
	VendorID  uint16 `json:"vendor_id,omitempty"`
	ProductID uint16 `json:"product_id,omitempty"`

	// Brightness is 1 (low) or 2 (high).
	Brightness int `json:"brightness,omitempty"`

	// ZoneMap maps each physical zone to an effect color index.
	ZoneMap []int `json:"zone_map,omitempty"`
}

// WLEDConfig holds network parameters for a WLED controller.
type WLEDConfig struct {
	Host     string `json:"host"`
	HTTPPort int    `json:"http_port,omitempty"`
	UDPPort  int    `json:"udp_port,omitempty"`
	LEDCount int    `json:"led_count"`

	// RealtimeTimeout is the seconds WLED stays in realtime mode after the
	// last packet. 255 keeps it there until told otherwise.
	RealtimeTimeout int `json:"realtime_timeout,omitempty"`

	// Segments are the first LED index of each zone, ascending.
	// Empty splits the strip into equal quarters.
	Segments []int `json:"segments,omitempty"`
}

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	cpy := c
	if c.Keyboard != nil {
		kb := *c.Keyboard
		kb.ZoneMap = append([]int(nil), c.Keyboard.ZoneMap...)
		cpy.Keyboard = &kb
	}
	if c.WLED != nil {
		w := *c.WLED
		w.Segments = append([]int(nil), c.WLED.Segments...)
		cpy.WLED = &w
	}
	return cpy
}

// Info is a read-only snapshot of a registered instance.
type Info struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Lifecycle  Lifecycle `json:"lifecycle"`
	QueueDepth int       `json:"queue_depth"`
}
