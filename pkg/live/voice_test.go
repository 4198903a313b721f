package live

import "testing"

func TestResolveVoice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Puck", "Puck"},
		{"charon", "Charon"},
		{"KORE", "Kore"},
		{"  Fenrir  ", "Fenrir"},
		{"Aoede", "Aoede"},
		{"Alloy", "Puck"},
		{"echo", "Fenrir"},
		{"Fable", "Charon"},
		{"onyx", "Fenrir"},
		{"Nova", "Aoede"},
		{"shimmer", "Aoede"},
		{"", "Kore"},
		{"totally-made-up", "Kore"},
	}

	for _, tt := range tests {
		if got := ResolveVoice(tt.in); got != tt.want {
			t.Errorf("ResolveVoice(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSupportedVoicesResolveToThemselves(t *testing.T) {
	for _, v := range SupportedVoices() {
		if got := ResolveVoice(v); got != v {
			t.Errorf("ResolveVoice(%q) = %q, want identity", v, got)
		}
	}
}
