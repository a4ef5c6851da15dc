package device

import (
	"errors"
	"testing"
)

func TestParseOp(t *testing.T) {
	tests := []struct {
		in      string
		want    Op
		wantErr bool
	}{
		{"load", OpLoad, false},
		{"unload", OpUnload, false},
		{"on", OpTurnOn, false},
		{"turn_on", OpTurnOn, false},
		{"off", OpTurnOff, false},
		{"send_colors", OpSendColors, false},
		{"explode", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOp(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOp(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidOp) {
				t.Errorf("ParseOp(%q) error = %v, want ErrInvalidOp", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseOp(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRGBString(t *testing.T) {
	if got := (RGB{255, 16, 0}).String(); got != "#ff1000" {
		t.Errorf("String() = %q, want #ff1000", got)
	}
}

func TestConfigClone(t *testing.T) {
	orig := Config{
		ID:       "kb",
		Kind:     KindKeyboard,
		Keyboard: &KeyboardConfig{ZoneMap: []int{0, 1, 2, 3}},
	}
	cpy := orig.Clone()
	cpy.Keyboard.ZoneMap[0] = 3
	cpy.Keyboard.Brightness = 2

	if orig.Keyboard.ZoneMap[0] != 0 || orig.Keyboard.Brightness != 0 {
		t.Errorf("Clone() shares storage with original: %+v", orig.Keyboard)
	}
}

func TestReport(t *testing.T) {
	ioErr := errors.New("io")
	r := Report{Op: OpTurnOff, Results: []Result{
		{DeviceID: "a", Op: OpTurnOff},
		{DeviceID: "b", Op: OpTurnOff, Err: ErrNotLoaded, Skipped: true},
		{DeviceID: "c", Op: OpTurnOff, Err: ioErr},
	}}

	ok, skipped, failed := r.Counts()
	if ok != 1 || skipped != 1 || failed != 1 {
		t.Errorf("Counts() = %d, %d, %d; want 1, 1, 1", ok, skipped, failed)
	}
	if f := r.Failures(); len(f) != 1 || f[0].DeviceID != "c" {
		t.Errorf("Failures() = %+v, want [c]", f)
	}
	if !errors.Is(r.Err(), ioErr) || errors.Is(r.Err(), ErrNotLoaded) {
		t.Errorf("Err() = %v, want only the io failure", r.Err())
	}
	if r.OK() {
		t.Error("OK() = true, want false")
	}
	if (Report{}).Err() != nil {
		t.Error("empty report Err() != nil")
	}
}
