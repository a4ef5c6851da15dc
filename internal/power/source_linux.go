//go:build linux

package power

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

const (
	logindDest      = "org.freedesktop.login1"
	logindPath      = dbus.ObjectPath("/org/freedesktop/login1")
	logindManager   = "org.freedesktop.login1.Manager"
	prepareForSleep = logindManager + ".PrepareForSleep"
)

// LogindSource translates systemd-logind PrepareForSleep signals into
// suspend (true) and resume (false) events. While running it holds a delay
// inhibitor so the devices can be turned off before the system sleeps; the
// inhibitor is released when the suspend event is acknowledged and taken
// again on resume.
type LogindSource struct {
	mu      sync.Mutex
	conn    *dbus.Conn
	signals chan *dbus.Signal
	done    chan struct{}
	wg      sync.WaitGroup

	lockMu sync.Mutex
	lockFD int
}

func platformSource(name string) (Source, error) {
	switch name {
	case SourceAuto, SourceLogind:
		return &LogindSource{lockFD: -1}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
}

// Name returns "logind".
func (s *LogindSource) Name() string { return SourceLogind }

// Start connects to the system bus and subscribes to PrepareForSleep.
func (s *LogindSource) Start(ctx context.Context, out chan<- Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return ErrAlreadyStarted
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("%w: system bus: %w", ErrSubscribe, err)
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchObjectPath(logindPath),
		dbus.WithMatchInterface(logindManager),
		dbus.WithMatchMember("PrepareForSleep"),
	)
	if err != nil {
		conn.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("%w: match PrepareForSleep: %w", ErrSubscribe, err)
	}

	s.conn = conn
	s.signals = make(chan *dbus.Signal, 8)
	s.done = make(chan struct{})
	conn.Signal(s.signals)

	// A missing inhibitor only loses the head start before sleep.
	_ = s.inhibit(ctx)

	s.wg.Add(1)
	go s.loop(ctx, out)
	return nil
}

func (s *LogindSource) loop(ctx context.Context, out chan<- Event) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case sig, ok := <-s.signals:
			if !ok {
				return
			}
			ev, ok := s.translate(ctx, sig)
			if !ok {
				continue
			}
			if !deliver(out, ev) {
				ev.Ack()
			}
		}
	}
}

// translate maps one signal to an event. Suspend events carry an ack
// that releases the delay inhibitor.
func (s *LogindSource) translate(ctx context.Context, sig *dbus.Signal) (Event, bool) {
	if sig == nil || sig.Name != prepareForSleep || len(sig.Body) == 0 {
		return Event{}, false
	}
	sleeping, ok := sig.Body[0].(bool)
	if !ok {
		return Event{}, false
	}

	if sleeping {
		return NewEvent(SourceLogind, CodeSuspend).WithAck(s.release), true
	}
	_ = s.inhibit(ctx)
	return NewEvent(SourceLogind, CodeResumeSuspend), true
}

func (s *LogindSource) inhibit(ctx context.Context) error {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	if s.lockFD >= 0 || s.conn == nil {
		return nil
	}

	var fd dbus.UnixFD
	obj := s.conn.Object(logindDest, logindPath)
	err := obj.CallWithContext(ctx, logindManager+".Inhibit", 0,
		"sleep", "chroma-sync", "Turning off synced lighting", "delay").Store(&fd)
	if err != nil {
		return fmt.Errorf("inhibit sleep: %w", err)
	}
	s.lockFD = int(fd)
	return nil
}

func (s *LogindSource) release() {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	if s.lockFD < 0 {
		return
	}
	unix.Close(s.lockFD) //nolint:errcheck // Closing the lock is the release
	s.lockFD = -1
}

// Stop removes the subscription, releases the inhibitor and closes the bus.
func (s *LogindSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	close(s.done)
	s.conn.RemoveSignal(s.signals)
	s.wg.Wait()
	s.release()

	err := s.conn.Close()
	s.conn = nil
	return err
}
