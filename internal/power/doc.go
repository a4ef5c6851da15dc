// Package power forwards host suspend and resume notifications to the
// device registry.
//
// A Source adapts one notification facility (powrprof on Windows, logind
// over D-Bus on Linux, an MQTT topic, or nothing) and sends Events on a
// buffered channel without blocking. The Controller drains that channel:
//
//	code 4  (suspend)         → TurnOff on every device
//	code 7  (resume)          → TurnOn on every device
//	anything else, incl. 18   → ignored
//
// Sources that can hold the system (logind delay inhibitors) attach an ack
// to the suspend event; the Controller calls Event.Ack after TurnOff.
package power
