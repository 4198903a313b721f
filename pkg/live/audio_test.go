package live

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func TestEncodePCM16Extremes(t *testing.T) {
	tests := []struct {
		name   string
		sample float32
		want   int16
	}{
		{"zero", 0, 0},
		{"full negative", -1, -32768},
		{"full positive", 1, 32767},
		{"clamped below", -2.5, -32768},
		{"clamped above", 3.0, 32767},
		{"half positive", 0.5, 16383},
		{"half negative", -0.5, -16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := EncodePCM16([]float32{tt.sample})
			got := int16(uint16(out[0]) | uint16(out[1])<<8)
			if got != tt.want {
				t.Errorf("EncodePCM16(%v) = %d, want %d", tt.sample, got, tt.want)
			}
		})
	}
}

func TestPCMRoundTripNearIdentity(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.9999, -0.9999, 1, -1, 0.123456, -0.654321}
	decoded := DecodePCM16(EncodePCM16(samples), 16000, 1)

	if decoded.Frames() != len(samples) {
		t.Fatalf("frames = %d, want %d", decoded.Frames(), len(samples))
	}
	const tolerance = 2.5 / 32768.0
	for i, want := range samples {
		got := decoded.Channels[0][i]
		if diff := math.Abs(float64(got - want)); diff > tolerance {
			t.Errorf("sample %d: got %v, want %v (diff %v)", i, got, want, diff)
		}
	}
}

func TestDecodePCM16Stereo(t *testing.T) {
	// Interleaved L/R frames: (100, -100), (200, -200).
	pcm := []byte{100, 0, 156, 255, 200, 0, 56, 255}
	buf := DecodePCM16(pcm, 48000, 2)

	if len(buf.Channels) != 2 || buf.Frames() != 2 {
		t.Fatalf("got %d channels x %d frames, want 2x2", len(buf.Channels), buf.Frames())
	}
	if buf.Channels[0][0] <= 0 || buf.Channels[1][0] >= 0 {
		t.Errorf("channels not deinterleaved: L=%v R=%v", buf.Channels[0][0], buf.Channels[1][0])
	}
}

func TestSampleBufferDuration(t *testing.T) {
	buf := &SampleBuffer{Channels: [][]float32{make([]float32, 24000)}, SampleRate: 24000}
	if got := buf.Duration(); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}
	var nilBuf *SampleBuffer
	if got := nilBuf.Duration(); got != 0 {
		t.Errorf("nil Duration = %v, want 0", got)
	}
}

func TestSampleBufferPCM16Interleaves(t *testing.T) {
	buf := &SampleBuffer{
		Channels:   [][]float32{{0.5, 0.5}, {-0.5, -0.5}},
		SampleRate: 48000,
	}
	pcm := buf.PCM16()
	if len(pcm) != 8 {
		t.Fatalf("len = %d, want 8", len(pcm))
	}
	round := DecodePCM16(pcm, 48000, 2)
	if round.Channels[0][0] <= 0 || round.Channels[1][0] >= 0 {
		t.Errorf("interleave order wrong: L=%v R=%v", round.Channels[0][0], round.Channels[1][0])
	}
}

func TestTransportTextRoundTrip(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	got, err := FromTransportText(ToTransportText(data))
	if err != nil {
		t.Fatalf("FromTransportText: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round trip did not preserve bytes")
	}

	if _, err := FromTransportText("not!!valid"); err == nil {
		t.Error("expected error for invalid transport text")
	}
}

func TestRMSEnergy(t *testing.T) {
	silence := make([]byte, 400)
	if got := RMSEnergy(silence); got != 0 {
		t.Errorf("silence RMS = %v, want 0", got)
	}

	loud := EncodePCM16([]float32{1, -1, 1, -1})
	if got := RMSEnergy(loud); got < 0.99 {
		t.Errorf("full-scale RMS = %v, want ~1", got)
	}

	if got := RMSEnergy(nil); got != 0 {
		t.Errorf("empty RMS = %v, want 0", got)
	}
}
