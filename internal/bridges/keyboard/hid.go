package keyboard

import (
	"fmt"
	"sync"

	"github.com/sstallion/go-hid"
)

// SupportedProductIDs are the 4-zone controllers probed when no product
// ID is configured.
var SupportedProductIDs = []uint16{0xc965, 0xc975, 0xc955, 0xc985, 0xc963}

// handle is the slice of a HID device the backend writes to.
type handle interface {
	SendFeatureReport(b []byte) (int, error)
	Close() error
}

// opener opens a HID handle for a keyboard config.
type opener func(path string, vendorID, productID uint16) (handle, string, error)

var (
	hidInitOnce sync.Once
	hidInitErr  error
)

// initHID initialises hidapi once per process.
func initHID() error {
	hidInitOnce.Do(func() {
		hidInitErr = hid.Init()
	})
	return hidInitErr
}

// openHID opens the configured path, or the first attached device
// matching vendorID and productID (any supported product when zero).
// Returns the opened handle and its path.
func openHID(path string, vendorID, productID uint16) (handle, string, error) {
	if err := initHID(); err != nil {
		return nil, "", fmt.Errorf("%w: hid init: %w", ErrOpenFailed, err)
	}

	if path == "" {
		found, err := findPath(vendorID, productID)
		if err != nil {
			return nil, "", err
		}
		path = found
	}

	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, err)
	}
	return dev, path, nil
}

// findPath enumerates HID devices for a supported keyboard.
func findPath(vendorID, productID uint16) (string, error) {
	products := SupportedProductIDs
	if productID != 0 {
		products = []uint16{productID}
	}

	for _, pid := range products {
		var path string
		err := hid.Enumerate(vendorID, pid, func(info *hid.DeviceInfo) error {
			if path == "" {
				path = info.Path
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("%w: enumerate %04x:%04x: %w", ErrOpenFailed, vendorID, pid, err)
		}
		if path != "" {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: vendor %04x", ErrDeviceNotFound, vendorID)
}
