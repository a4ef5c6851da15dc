// Package wled implements the network LED backend for WLED controllers.
//
// Colors are streamed with the WLED UDP realtime protocol (port 21324):
// DRGB for strips up to 490 LEDs, DNRGB chunks of 489 LEDs beyond that.
// The four effect colors are spread across four configured segments.
//
// On/off uses the controller's JSON API over its /ws websocket session,
// sending {"on":true} or {"on":false}. The session is held open between
// Load and Unload; a dropped session surfaces as ErrConnectionLost and is
// re-established by the next Load.
package wled
