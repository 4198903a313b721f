package preview

import (
	"strings"
	"testing"
)

func TestSampleRateFromMIME(t *testing.T) {
	tests := []struct {
		mime string
		want int
	}{
		{"audio/L16;codec=pcm;rate=24000", 24000},
		{"audio/pcm;rate=16000", 16000},
		{"audio/pcm; rate=48000", 48000},
		{"audio/pcm", 24000},
		{"", 24000},
		{"audio/pcm;rate=banana", 24000},
		{"audio/pcm;rate=-1", 24000},
	}
	for _, tt := range tests {
		if got := sampleRateFromMIME(tt.mime); got != tt.want {
			t.Errorf("sampleRateFromMIME(%q) = %d, want %d", tt.mime, got, tt.want)
		}
	}
}

func TestDefaultScriptUsesResolvedVoice(t *testing.T) {
	script := DefaultScript("Alloy")
	if !strings.Contains(script, "Puck") {
		t.Errorf("script %q does not name the resolved voice", script)
	}
}
