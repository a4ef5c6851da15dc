package broadcast

import (
	"errors"
	"testing"

	"github.com/nerrad567/chroma-sync/internal/device"
)

func TestStatus_Label(t *testing.T) {
	if got := Live.Label(); got != "Connected" {
		t.Errorf("Live.Label() = %q, want Connected", got)
	}
	if got := NotLive.Label(); got != "Disconnected" {
		t.Errorf("NotLive.Label() = %q, want Disconnected", got)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"live", Live, false},
		{"Connected", Live, false},
		{"not_live", NotLive, false},
		{"Disconnected", NotLive, false},
		{"", "", true},
		{"maybe", "", true},
	}

	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColorPolicy_Channel(t *testing.T) {
	tests := []struct {
		policy  ColorPolicy
		in      int
		want    uint8
		wantErr error
	}{
		{PolicyClamp, 0, 0, nil},
		{PolicyClamp, 255, 255, nil},
		{PolicyClamp, 300, 255, nil},
		{PolicyClamp, -5, 0, nil},
		{PolicyReject, 128, 128, nil},
		{PolicyReject, 256, 0, ErrOutOfRange},
		{PolicyReject, -1, 0, ErrOutOfRange},
	}

	for _, tt := range tests {
		got, err := tt.policy.Channel(tt.in)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s.Channel(%d) error = %v, want %v", tt.policy, tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%s.Channel(%d) = %d, want %d", tt.policy, tt.in, got, tt.want)
		}
	}
}

func TestColorPolicy_Effect(t *testing.T) {
	four := [][]int{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {300, -1, 10}}

	got, err := PolicyClamp.Effect(four)
	if err != nil {
		t.Fatalf("Effect() error = %v", err)
	}
	want := device.ColorEffect{{R: 255}, {G: 255}, {B: 255}, {R: 255, G: 0, B: 10}}
	if got != want {
		t.Errorf("Effect() = %v, want %v", got, want)
	}

	if _, err := PolicyReject.Effect(four); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("reject Effect() error = %v, want ErrOutOfRange", err)
	}
	if _, err := PolicyClamp.Effect(four[:3]); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Effect(3 colors) error = %v, want ErrInvalidPayload", err)
	}
	if _, err := PolicyClamp.Effect([][]int{{1, 2}, {1, 2, 3}, {1, 2, 3}, {1, 2, 3}}); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Effect(short triple) error = %v, want ErrInvalidPayload", err)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]ColorPolicy{"": PolicyClamp, "clamp": PolicyClamp, "reject": PolicyReject} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("wrap"); err == nil {
		t.Error("ParsePolicy(wrap) error = nil, want error")
	}
}

func TestEffectFromLinks(t *testing.T) {
	// COLORREF is 0x00BBGGRR; link 1 is ignored.
	links := [5]uint32{0x00ffffff, 0x000000ff, 0x0000ff00, 0x00ff0000, 0x00332211}
	got := effectFromLinks(links)
	want := device.ColorEffect{
		{R: 0xff},
		{G: 0xff},
		{B: 0xff},
		{R: 0x11, G: 0x22, B: 0x33},
	}
	if got != want {
		t.Errorf("effectFromLinks() = %v, want %v", got, want)
	}
}

func TestParseAppID(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"e0a3a0d6-7f43-4c4b-9a9b-0d1c1e2f3a4b", false},
		{"{E0A3A0D6-7F43-4C4B-9A9B-0D1C1E2F3A4B}", false},
		{"  e0a3a0d6-7f43-4c4b-9a9b-0d1c1e2f3a4b ", false},
		{"", true},
		{"not-a-guid", true},
	}

	for _, tt := range tests {
		_, err := ParseAppID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAppID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidAppID) {
			t.Errorf("ParseAppID(%q) error = %v, want ErrInvalidAppID", tt.in, err)
		}
	}
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
		{name: SourceChroma, want: SourceChroma},
		{name: SourceMQTT, opts: Options{MQTT: &fakeSubscriber{}, Topic: "t"}, want: SourceMQTT},
		{name: SourceMQTT, wantErr: ErrUnsupported},
		{name: "razer", wantErr: ErrUnknownSource},
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
			t.Fatalf("NewSource(%q) error = %v", tt.name, err)
		}
		if src.Name() != tt.want {
			t.Errorf("NewSource(%q).Name() = %q, want %q", tt.name, src.Name(), tt.want)
		}
	}
}
