// Package keyboard implements the HID keyboard backlight backend.
//
// It targets 4-zone laptop keyboards driven by an ITE controller
// (vendor 0x048d). Each color write is one 33-byte feature report
// selecting the static effect:
//
//	[0xCC, 0x16, 0x01, speed, brightness, 4 × (r, g, b), 0, 0, 0, pad...]
//
// HID access goes through github.com/sstallion/go-hid. hidapi is
// initialised once per process on the first Load.
package keyboard
