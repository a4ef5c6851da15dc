// Package syncctl implements the Sync Controller: the single sync-enabled
// flag that gates broadcast fan-out.
//
// State machine:
//
//	Disabled ──Enable()──▶ Enabled    (persist, aggregate load)
//	Enabled  ──Disable()─▶ Disabled   (persist, aggregate unload)
//	Enabled  ──Enable()──▶ Enabled    (load re-issued)
//
// A persistence failure is logged and returned, but the device action
// still runs.
package syncctl
