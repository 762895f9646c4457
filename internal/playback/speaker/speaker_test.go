package speaker

import (
	"testing"

	"github.com/faiface/beep/effects"
)

func TestApplyLevel(t *testing.T) {
	tests := []struct {
		level  float64
		silent bool
		volume float64
	}{
		{level: 1, volume: 0},
		{level: 0.5, volume: -1},
		{level: 0.25, volume: -2},
		{level: 0, silent: true},
		{level: 3, volume: 0},
	}

	for _, tt := range tests {
		v := &effects.Volume{Base: 2}
		applyLevel(v, tt.level)
		if v.Silent != tt.silent {
			t.Fatalf("level %v: silent = %v, want %v", tt.level, v.Silent, tt.silent)
		}
		if !tt.silent && v.Volume != tt.volume {
			t.Fatalf("level %v: volume = %v, want %v", tt.level, v.Volume, tt.volume)
		}
	}
}
