// Package bridges turns persisted device configs into live backends.
//
// The backends live in sub-packages:
//   - keyboard: HID 4-zone keyboard backlight
//   - wled: WLED network LED controller
//
// Everything above this package works with device.Device only.
package bridges
