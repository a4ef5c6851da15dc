package bridges

import (
	"errors"
	"testing"

	"github.com/nerrad567/chroma-sync/internal/device"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      device.Config
		wantKind device.Kind
		wantErr  error
	}{
		{
			name:     "keyboard",
			cfg:      device.Config{ID: "kb", Kind: device.KindKeyboard},
			wantKind: device.KindKeyboard,
		},
		{
			name: "wled",
			cfg: device.Config{ID: "desk", Kind: device.KindWLED,
				WLED: &device.WLEDConfig{Host: "10.0.0.5", LEDCount: 60}},
			wantKind: device.KindWLED,
		},
		{
			name:    "unknown kind",
			cfg:     device.Config{ID: "x", Kind: "lamp"},
			wantErr: device.ErrInvalidKind,
		},
		{
			name:    "invalid wled",
			cfg:     device.Config{ID: "x", Kind: device.KindWLED},
			wantErr: device.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.cfg, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if d.ID() != tt.cfg.ID || d.Kind() != tt.wantKind {
				t.Errorf("New() = %s/%s, want %s/%s", d.ID(), d.Kind(), tt.cfg.ID, tt.wantKind)
			}
		})
	}
}
