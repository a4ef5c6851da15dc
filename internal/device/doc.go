// Package device provides the device contract and the Device Registry for
// chroma-sync.
//
// Every lighting backend (HID keyboard, WLED controller) implements the
// Device interface. Nothing above this package branches on device kind.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                         Device Registry                          │
//	│                                                                  │
//	│   Dispatch(op, effect)                                           │
//	│        │                                                         │
//	│        ├──▶ worker[kb]   queue ─▶ Keyboard.SendColors(ctx, e)   │
//	│        ├──▶ worker[desk] queue ─▶ WLED.SendColors(ctx, e)       │
//	│        └──▶ worker[tv]   queue ─▶ WLED.SendColors(ctx, e)       │
//	│                                                                  │
//	│   Each worker: FIFO, unbounded, per-op timeout, panic recovery   │
//	└─────────────────────────────────────────────────────────────────┘
//	             │ Result per device
//	             ▼
//	        Pending.Wait(ctx) ─▶ Report{Results, Failures(), Err()}
//
// # Key Types
//
//   - Device: capability contract {Load, Unload, TurnOn, TurnOff, SendColors}
//   - ColorEffect: four RGB samples, one per zone
//   - Config: persisted per-instance configuration (kind + connection params)
//   - Registry: ordered instances, one worker each
//   - Report / Result: per-device outcomes of an aggregate operation
//
// # Usage
//
//	reg := device.NewRegistry(device.RegistryOptions{OpTimeout: 2 * time.Second})
//	reg.SetLogger(log)
//	reg.Add(dev)
//
//	report := reg.Load(ctx)
//	for _, f := range report.Failures() {
//	    log.Warn("load failed", "device_id", f.DeviceID, "error", f.Err)
//	}
//
//	// From an event callback: queue and return immediately.
//	reg.Dispatch(device.OpSendColors, effect)
//
// # Lifecycle
//
// The registry tracks Unloaded/Loaded per instance. send_colors is skipped
// for unloaded instances without calling the backend. turn_on and turn_off
// reach every instance; a backend answering ErrNotLoaded is reported as
// skipped, never as a failure.
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Membership changes take a write
// lock; dispatch takes a read lock. Backends are only ever called from
// their own worker goroutine, one operation at a time.
package device
