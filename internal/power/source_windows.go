//go:build windows

package power

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

const deviceNotifyCallback = 2 // DEVICE_NOTIFY_CALLBACK

var (
	modpowrprof                                  = windows.NewLazySystemDLL("powrprof.dll")
	procPowerRegisterSuspendResumeNotification   = modpowrprof.NewProc("PowerRegisterSuspendResumeNotification")
	procPowerUnregisterSuspendResumeNotification = modpowrprof.NewProc("PowerUnregisterSuspendResumeNotification")
)

// deviceNotifySubscribeParameters mirrors DEVICE_NOTIFY_SUBSCRIBE_PARAMETERS.
type deviceNotifySubscribeParameters struct {
	callback uintptr
	context  uintptr
}

// The OS calls back on its own thread with no Go context, so the active
// source is reached through package state. windows.NewCallback slots are
// never freed, so the callback is created once.
var (
	activeMu     sync.Mutex
	activeOut    chan<- Event
	callbackOnce sync.Once
	callbackPtr  uintptr
)

func suspendResumeCallback(_ uintptr, eventType uint32, _ uintptr) uintptr {
	activeMu.Lock()
	out := activeOut
	activeMu.Unlock()

	if out != nil {
		deliver(out, NewEvent(SourceWindows, int(eventType)))
	}
	return 0 // ERROR_SUCCESS
}

// WindowsSource receives suspend/resume notifications from powrprof.
type WindowsSource struct {
	mu     sync.Mutex
	handle uintptr
	params *deviceNotifySubscribeParameters
}

func platformSource(name string) (Source, error) {
	switch name {
	case SourceAuto, SourceWindows:
		return &WindowsSource{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
}

// Name returns "windows".
func (s *WindowsSource) Name() string { return SourceWindows }

// Start registers for suspend/resume notifications.
func (s *WindowsSource) Start(_ context.Context, out chan<- Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != 0 {
		return ErrAlreadyStarted
	}
	if err := procPowerRegisterSuspendResumeNotification.Find(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	}

	callbackOnce.Do(func() {
		callbackPtr = windows.NewCallback(suspendResumeCallback)
	})

	activeMu.Lock()
	activeOut = out
	activeMu.Unlock()

	s.params = &deviceNotifySubscribeParameters{callback: callbackPtr}
	var handle uintptr
	ret, _, _ := procPowerRegisterSuspendResumeNotification.Call(
		deviceNotifyCallback,
		uintptr(unsafe.Pointer(s.params)),
		uintptr(unsafe.Pointer(&handle)),
	)
	if ret != 0 {
		activeMu.Lock()
		activeOut = nil
		activeMu.Unlock()
		return fmt.Errorf("%w: PowerRegisterSuspendResumeNotification: %w", ErrSubscribe, windows.Errno(ret))
	}
	s.handle = handle
	return nil
}

// Stop unregisters the notification.
func (s *WindowsSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == 0 {
		return nil
	}
	activeMu.Lock()
	activeOut = nil
	activeMu.Unlock()

	ret, _, _ := procPowerUnregisterSuspendResumeNotification.Call(s.handle)
	s.handle = 0
	s.params = nil
	if ret != 0 {
		return fmt.Errorf("PowerUnregisterSuspendResumeNotification: %w", windows.Errno(ret))
	}
	return nil
}
