package power

import (
	"errors"
	"testing"
)

func TestFromCode(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{CodeSuspend, Suspend},
		{CodeResumeSuspend, Resume},
		{CodePowerStatus, Other},
		{CodeOEMEvent, Other},
		{CodeResumeAutomatic, Other},
		{0, Other},
		{-1, Other},
		{9999, Other},
	}

	for _, tt := range tests {
		if got := FromCode(tt.code); got != tt.want {
			t.Errorf("FromCode(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestEvent_AckOnce(t *testing.T) {
	calls := 0
	ev := NewEvent("test", CodeSuspend).WithAck(func() { calls++ })

	ev.Ack()
	ev.Ack()
	if calls != 1 {
		t.Errorf("ack calls = %d, want 1", calls)
	}

	// No ack attached.
	NewEvent("test", CodeResumeSuspend).Ack()
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    string
		wantErr error
	}{
		{name: "", want: SourceNone},
		{name: SourceNone, want: SourceNone},
		{name: SourceMQTT, opts: Options{MQTT: &fakeSubscriber{}, Topic: "p"}, want: SourceMQTT},
		{name: SourceMQTT, wantErr: ErrUnsupported},
		{name: "bogus", wantErr: ErrUnknownSource},
	}

	for _, tt := range tests {
		src, err := NewSource(tt.name, tt.opts)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewSource(%q) error = %v, want %v", tt.name, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewSource(%q) error = %v", tt.name, err)
			continue
		}
		if src.Name() != tt.want {
			t.Errorf("NewSource(%q).Name() = %q, want %q", tt.name, src.Name(), tt.want)
		}
	}
}
