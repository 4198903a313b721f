package live

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"time"
)

// EncodePCM16 converts floating-point samples to 16-bit signed little-endian
// PCM. Samples are clamped to [-1, 1]; negative values scale by 32768 and
// non-negative by 32767 so both extremes map onto the full int16 range.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		s := float64(sample)
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// SampleBuffer is decoded audio: one float slice per channel, all the same
// length.
type SampleBuffer struct {
	Channels   [][]float32
	SampleRate int
}

// Frames returns the per-channel sample count.
func (b *SampleBuffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback duration of the buffer.
func (b *SampleBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// PCM16 re-encodes the buffer as interleaved 16-bit little-endian PCM.
func (b *SampleBuffer) PCM16() []byte {
	frames := b.Frames()
	channels := len(b.Channels)
	if frames == 0 || channels == 0 {
		return nil
	}
	if channels == 1 {
		return EncodePCM16(b.Channels[0])
	}
	interleaved := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			interleaved[i*channels+ch] = b.Channels[ch][i]
		}
	}
	return EncodePCM16(interleaved)
}

// DecodePCM16 converts 16-bit signed little-endian PCM into a deinterleaved
// SampleBuffer, scaling by 1/32768. A trailing odd byte is ignored.
func DecodePCM16(data []byte, sampleRate, channels int) *SampleBuffer {
	if channels < 1 {
		channels = 1
	}
	frames := len(data) / 2 / channels
	buf := &SampleBuffer{
		Channels:   make([][]float32, channels),
		SampleRate: sampleRate,
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			v := int16(binary.LittleEndian.Uint16(data[off:]))
			buf.Channels[ch][i] = float32(v) / 32768.0
		}
	}
	return buf
}

// ToTransportText encodes raw bytes into the transport-safe text encoding
// used for audio payloads on the wire.
func ToTransportText(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromTransportText decodes a transport-text payload back into raw bytes.
func FromTransportText(text string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(text)
}

// RMSEnergy computes the root-mean-square energy of 16-bit little-endian PCM,
// normalized to [0, 1].
func RMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int16(binary.LittleEndian.Uint16(pcm[i:]))
		n := float64(v) / 32768.0
		sum += n * n
	}
	return math.Sqrt(sum / float64(samples))
}
