package power

import (
	"sync"
	"time"
)

// Kind is the semantic meaning of a power notification.
type Kind string

// Power event kinds.
const (
	Suspend Kind = "suspend"
	Resume  Kind = "resume"
	Other   Kind = "other"
)

// Raw platform codes with a fixed meaning. The values follow the Windows
// PBT_* power broadcast identifiers; other sources translate to them.
const (
	CodeSuspend         = 4  // PBT_APMSUSPEND
	CodeResumeSuspend   = 7  // PBT_APMRESUMESUSPEND
	CodePowerStatus     = 10 // PBT_APMPOWERSTATUSCHANGE
	CodeOEMEvent        = 11 // PBT_APMOEMEVENT
	CodeResumeAutomatic = 18 // PBT_APMRESUMEAUTOMATIC
)

// FromCode maps a raw code to its kind. Every code other than 4 and 7 is
// Other, including the automatic-resume code 18.
func FromCode(code int) Kind {
	switch code {
	case CodeSuspend:
		return Suspend
	case CodeResumeSuspend:
		return Resume
	default:
		return Other
	}
}

// Event is one power notification.
type Event struct {
	Kind   Kind      `json:"kind"`
	Code   int       `json:"code"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`

	ack func()
}

// NewEvent builds an event from a raw code.
func NewEvent(source string, code int) Event {
	return Event{Kind: FromCode(code), Code: code, Source: source, At: time.Now()}
}

// WithAck returns a copy of e that calls fn once the controller has
// finished acting on it. Sources use it to hold the system until the
// devices are off.
func (e Event) WithAck(fn func()) Event {
	var once sync.Once
	e.ack = func() { once.Do(fn) }
	return e
}

// Ack signals that the event has been handled. Safe to call on any event.
func (e Event) Ack() {
	if e.ack != nil {
		e.ack()
	}
}
