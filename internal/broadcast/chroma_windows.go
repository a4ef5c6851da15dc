//go:build windows

package broadcast

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Callback notification types and status values of the broadcast API.
const (
	chromaTypeEffect = 1
	chromaTypeStatus = 2

	chromaStatusLive    = 1
	chromaStatusNotLive = 2

	rzResultSuccess = 0
)

// chromaEffect mirrors CHROMA_BROADCAST_EFFECT.
type chromaEffect struct {
	links         [5]uint32 // COLORREF
	isAppSpecific int32
}

// The DLL calls back on its own thread, so the subscribed channel is
// reached through package state. windows.NewCallback slots are never
// freed, so the callback is created once.
var (
	activeMu     sync.Mutex
	activeOut    chan<- Event
	callbackOnce sync.Once
	callbackPtr  uintptr
)

func chromaCallback(typ uint32, data uintptr) uintptr {
	activeMu.Lock()
	out := activeOut
	activeMu.Unlock()

	if out == nil {
		return rzResultSuccess
	}

	switch typ {
	case chromaTypeEffect:
		if data == 0 {
			return rzResultSuccess
		}
		raw := (*chromaEffect)(unsafe.Pointer(data))
		deliver(out, EffectEvent(effectFromLinks(raw.links)))
	case chromaTypeStatus:
		switch data {
		case chromaStatusLive:
			deliver(out, StatusEvent(Live))
		case chromaStatusNotLive:
			deliver(out, StatusEvent(NotLive))
		}
	}
	return rzResultSuccess
}

// ChromaSource receives the Razer Chroma broadcast through the SDK DLL.
type ChromaSource struct {
	dll        *windows.LazyDLL
	init       *windows.LazyProc
	register   *windows.LazyProc
	unregister *windows.LazyProc
	uninit     *windows.LazyProc

	mu          sync.Mutex
	initialized bool
	subscribed  bool
}

func newChromaSource(name string) *ChromaSource {
	if name == "" {
		name = "RzChromaBroadcastAPI64.dll"
	}
	dll := windows.NewLazyDLL(name)
	return &ChromaSource{
		dll:        dll,
		init:       dll.NewProc("Init"),
		register:   dll.NewProc("RegisterEventNotification"),
		unregister: dll.NewProc("UnRegisterEventNotification"),
		uninit:     dll.NewProc("UnInit"),
	}
}

// Name returns "chroma".
func (s *ChromaSource) Name() string { return SourceChroma }

// Init loads the SDK and initialises it with appID.
func (s *ChromaSource) Init(_ context.Context, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	id, err := ParseAppID(appID)
	if err != nil {
		return err
	}
	if err := s.dll.Load(); err != nil {
		return fmt.Errorf("%w: loading %s: %w", ErrInitFailed, s.dll.Name, err)
	}

	guid := windows.GUID{
		Data1: binary.BigEndian.Uint32(id[0:4]),
		Data2: binary.BigEndian.Uint16(id[4:6]),
		Data3: binary.BigEndian.Uint16(id[6:8]),
	}
	copy(guid.Data4[:], id[8:16])

	ret, _, _ := s.init.Call(uintptr(unsafe.Pointer(&guid)))
	if ret != rzResultSuccess {
		return fmt.Errorf("%w: Init returned %d", ErrInitFailed, int32(ret))
	}
	s.initialized = true
	return nil
}

// Subscribe registers the notification callback.
func (s *ChromaSource) Subscribe(out chan<- Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if s.subscribed {
		return ErrAlreadySubscribed
	}

	callbackOnce.Do(func() {
		callbackPtr = windows.NewCallback(chromaCallback)
	})

	activeMu.Lock()
	activeOut = out
	activeMu.Unlock()

	ret, _, _ := s.register.Call(callbackPtr)
	if ret != rzResultSuccess {
		activeMu.Lock()
		activeOut = nil
		activeMu.Unlock()
		return fmt.Errorf("%w: RegisterEventNotification returned %d", ErrInitFailed, int32(ret))
	}
	s.subscribed = true
	return nil
}

// Unsubscribe unregisters the callback. No events are delivered after it returns.
func (s *ChromaSource) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.subscribed {
		return nil
	}
	s.subscribed = false

	ret, _, _ := s.unregister.Call()
	activeMu.Lock()
	activeOut = nil
	activeMu.Unlock()

	if ret != rzResultSuccess {
		return fmt.Errorf("UnRegisterEventNotification returned %d", int32(ret))
	}
	return nil
}

// Close uninitialises the SDK.
func (s *ChromaSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}
	s.initialized = false

	ret, _, _ := s.uninit.Call()
	if ret != rzResultSuccess {
		return fmt.Errorf("UnInit returned %d", int32(ret))
	}
	return nil
}
