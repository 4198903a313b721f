package live

import (
	"fmt"
	"time"

	"github.com/fk219/webbot-voice/pkg/live/protocol"
)

// DefaultModel is the live model used when SessionConfig.Model is empty.
const DefaultModel = "models/gemini-2.0-flash-exp"

// FrameSamples is the number of samples per outbound capture frame.
const FrameSamples = 4096

// AudioConfig describes a raw PCM stream.
type AudioConfig struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// InputAudioConfig returns the capture format expected by the service.
func InputAudioConfig() AudioConfig {
	return AudioConfig{SampleRate: protocol.InputSampleRateHz, Channels: 1, BitsPerSample: 16}
}

// OutputAudioConfig returns the playback format produced by the service.
func OutputAudioConfig() AudioConfig {
	return AudioConfig{SampleRate: protocol.OutputSampleRateHz, Channels: protocol.OutputChannels, BitsPerSample: 16}
}

// BytesPerSecond returns the byte rate of the stream.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * c.BitsPerSample / 8
}

// Duration returns how long n bytes of this stream last.
func (c AudioConfig) Duration(n int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// SessionConfig carries everything needed to open a live voice session.
type SessionConfig struct {
	// Model overrides DefaultModel when set.
	Model string

	// AgentName and SystemPersona shape the system instruction.
	AgentName     string
	SystemPersona string

	// Voice is the requested persona voice. Unknown names resolve to a
	// supported equivalent, see ResolveVoice.
	Voice string

	// Language is a BCP-47 tag such as "en-US".
	Language string

	// SessionID identifies this session in persisted transcripts and usage
	// records.
	SessionID string

	// UserID and ProjectID attribute usage. IsTest marks usage rows that
	// should not count against a plan.
	UserID    string
	ProjectID string
	IsTest    bool
}

func (c *SessionConfig) model() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

// SystemInstruction renders the persona prompt sent during setup.
func (c *SessionConfig) SystemInstruction() string {
	name := c.AgentName
	if name == "" {
		name = "a helpful voice assistant"
	}
	persona := c.SystemPersona
	if persona == "" {
		persona = "You are friendly and professional."
	}
	lang := c.Language
	if lang == "" {
		lang = "en-US"
	}
	return fmt.Sprintf("You are %s. %s Respond in the user's language (%s) and keep responses concise and conversational.", name, persona, lang)
}

// Setup builds the wire setup message for this session.
func (c *SessionConfig) Setup() protocol.Setup {
	return protocol.Setup{
		Model: c.model(),
		GenerationConfig: &protocol.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &protocol.SpeechConfig{
				VoiceConfig: &protocol.VoiceConfig{
					PrebuiltVoiceConfig: &protocol.PrebuiltVoiceConfig{
						VoiceName: ResolveVoice(c.Voice),
					},
				},
			},
		},
		SystemInstruction: &protocol.Content{
			Parts: []protocol.Part{{Text: c.SystemInstruction()}},
		},
	}
}
