package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation limits and backend defaults.
const (
	maxNameLength = 100
	maxIDLength   = 64

	// DefaultKeyboardVendorID is the ITE controller used by 4-zone laptop keyboards.
	DefaultKeyboardVendorID uint16 = 0x048d

	DefaultWLEDHTTPPort        = 80
	DefaultWLEDUDPPort         = 21324
	DefaultWLEDRealtimeTimeout = 2

	maxLEDCount = 1500
)

var validKinds = func() map[Kind]struct{} {
	kinds := make(map[Kind]struct{}, len(AllKinds()))
	for _, k := range AllKinds() {
		kinds[k] = struct{}{}
	}
	return kinds
}()

// GenerateID returns a new random device ID.
func GenerateID() string {
	return uuid.NewString()
}

// ApplyDefaults fills unset optional fields and returns the result.
// The input is not modified.
func ApplyDefaults(cfg Config) Config {
	cfg = cfg.Clone()
	if cfg.ID == "" {
		cfg.ID = GenerateID()
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID
	}

	switch cfg.Kind {
	case KindKeyboard:
		if cfg.Keyboard == nil {
			cfg.Keyboard = &KeyboardConfig{}
		}
		if cfg.Keyboard.VendorID == 0 {
			cfg.Keyboard.VendorID = DefaultKeyboardVendorID
		}
		if cfg.Keyboard.Brightness == 0 {
			cfg.Keyboard.Brightness = 1
		}
		if len(cfg.Keyboard.ZoneMap) == 0 {
			cfg.Keyboard.ZoneMap = []int{0, 1, 2, 3}
		}
	case KindWLED:
		if cfg.WLED == nil {
			break
		}
		if cfg.WLED.HTTPPort == 0 {
			cfg.WLED.HTTPPort = DefaultWLEDHTTPPort
		}
		if cfg.WLED.UDPPort == 0 {
			cfg.WLED.UDPPort = DefaultWLEDUDPPort
		}
		if cfg.WLED.RealtimeTimeout == 0 {
			cfg.WLED.RealtimeTimeout = DefaultWLEDRealtimeTimeout
		}
		if len(cfg.WLED.Segments) == 0 && cfg.WLED.LEDCount > 0 {
			cfg.WLED.Segments = QuarterSegments(cfg.WLED.LEDCount)
		}
	}
	return cfg
}

// QuarterSegments splits n LEDs into four equal zones and returns each
// zone's first index.
func QuarterSegments(n int) []int {
	segs := make([]int, ZoneCount)
	for i := range segs {
		segs[i] = i * n / ZoneCount
	}
	return segs
}

// ValidateConfig checks a device config for required fields and sane values.
// Returns an error wrapping ErrInvalidConfig or ErrInvalidKind.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if len(cfg.ID) > maxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidConfig, maxIDLength)
	}
	if len(cfg.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidConfig, maxNameLength)
	}
	if _, ok := validKinds[cfg.Kind]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKind, cfg.Kind)
	}
	if cfg.Position < 0 {
		return fmt.Errorf("%w: position must be non-negative", ErrInvalidConfig)
	}

	switch cfg.Kind {
	case KindKeyboard:
		return validateKeyboard(cfg)
	case KindWLED:
		return validateWLED(cfg)
	}
	return nil
}

func validateKeyboard(cfg Config) error {
	if cfg.WLED != nil {
		return fmt.Errorf("%w: keyboard device %s carries wled settings", ErrInvalidConfig, cfg.ID)
	}
	kb := cfg.Keyboard
	if kb == nil {
		return nil
	}
	if kb.Brightness != 0 && kb.Brightness != 1 && kb.Brightness != 2 {
		return fmt.Errorf("%w: keyboard brightness must be 1 or 2", ErrInvalidConfig)
	}
	if len(kb.ZoneMap) != 0 && len(kb.ZoneMap) != ZoneCount {
		return fmt.Errorf("%w: keyboard zone_map needs %d entries", ErrInvalidConfig, ZoneCount)
	}
	for _, idx := range kb.ZoneMap {
		if idx < 0 || idx >= ZoneCount {
			return fmt.Errorf("%w: keyboard zone_map index %d out of range", ErrInvalidConfig, idx)
		}
	}
	return nil
}

func validateWLED(cfg Config) error {
	if cfg.Keyboard != nil {
		return fmt.Errorf("%w: wled device %s carries keyboard settings", ErrInvalidConfig, cfg.ID)
	}
	w := cfg.WLED
	if w == nil {
		return fmt.Errorf("%w: wled device %s needs wled settings", ErrInvalidConfig, cfg.ID)
	}
	if strings.TrimSpace(w.Host) == "" {
		return fmt.Errorf("%w: wled host is required", ErrInvalidConfig)
	}
	if strings.ContainsAny(w.Host, "/ ") {
		return fmt.Errorf("%w: wled host %q must be a hostname or address", ErrInvalidConfig, w.Host)
	}
	if w.LEDCount <= 0 || w.LEDCount > maxLEDCount {
		return fmt.Errorf("%w: wled led_count must be 1..%d", ErrInvalidConfig, maxLEDCount)
	}
	for name, port := range map[string]int{"http_port": w.HTTPPort, "udp_port": w.UDPPort} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%w: wled %s out of range", ErrInvalidConfig, name)
		}
	}
	if w.RealtimeTimeout < 0 || w.RealtimeTimeout > 255 {
		return fmt.Errorf("%w: wled realtime_timeout must be 1..255", ErrInvalidConfig)
	}
	if len(w.Segments) != 0 {
		if len(w.Segments) != ZoneCount {
			return fmt.Errorf("%w: wled segments needs %d entries", ErrInvalidConfig, ZoneCount)
		}
		prev := 0
		for _, start := range w.Segments {
			if start < prev || start >= w.LEDCount {
				return fmt.Errorf("%w: wled segments must not descend and must lie within led_count", ErrInvalidConfig)
			}
			prev = start
		}
	}
	return nil
}
