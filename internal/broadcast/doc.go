// Package broadcast implements the Broadcast Event Router.
//
// A Source adapts one broadcast feed (the Razer Chroma broadcast SDK on
// Windows, JSON over MQTT, or nothing) and normalizes its notifications
// into Events: a four-color effect or a connectivity status. Sources run
// on threads they do not own, so they only ever perform a non-blocking
// send on the router's channel.
//
// The Router drains that channel on one goroutine:
//
//	status → Presenter.PresentStatus
//	effect → Presenter.PresentPreview, then, while the Gate is enabled,
//	         Registry.Dispatch(send_colors) and later PresentReport
//
// Start never fails hard. An initialisation failure (missing app id,
// missing SDK) leaves the router Uninitialized and is returned as an
// InitReport for the caller to surface.
package broadcast
