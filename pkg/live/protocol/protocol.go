package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// InputMimeType is the required mime type for outbound microphone audio.
	InputMimeType = "audio/pcm;rate=16000"

	// InputSampleRateHz is the capture sample rate the endpoint expects.
	InputSampleRateHz = 16000

	// OutputSampleRateHz is the sample rate of synthesized model audio.
	OutputSampleRateHz = 24000

	// OutputChannels is the channel count of synthesized model audio.
	OutputChannels = 1
)

// Blob is a transport-text-encoded binary payload with its mime type.
type Blob struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

// Part is one element of a content turn. Exactly one field is set.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Content is an ordered list of parts attributed to a role.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// PrebuiltVoiceConfig selects a named synthesis voice.
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// VoiceConfig wraps the voice selection union.
type VoiceConfig struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

// SpeechConfig configures audio synthesis for the session.
type SpeechConfig struct {
	VoiceConfig *VoiceConfig `json:"voiceConfig,omitempty"`
}

// GenerationConfig carries the session-level generation parameters sent at setup.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// Setup is the first frame a client sends on a fresh connection. The remote
// side acknowledges it with SetupComplete; nothing else may be sent before
// that acknowledgement arrives.
type Setup struct {
	Model             string            `json:"model"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
}

// SetupMessage is the wire envelope for Setup.
type SetupMessage struct {
	Setup Setup `json:"setup"`
}

// RealtimeInput carries streamed media from the client. Chunks are consumed
// in order; there is no acknowledgement or retransmission.
type RealtimeInput struct {
	MediaChunks []Blob `json:"mediaChunks"`
}

// RealtimeInputMessage is the wire envelope for RealtimeInput.
type RealtimeInputMessage struct {
	RealtimeInput RealtimeInput `json:"realtimeInput"`
}

// AudioChunk builds a realtime input frame for one encoded PCM16 chunk.
// data must already be transport-text encoded.
func AudioChunk(data string) RealtimeInputMessage {
	return RealtimeInputMessage{
		RealtimeInput: RealtimeInput{
			MediaChunks: []Blob{{MimeType: InputMimeType, Data: data}},
		},
	}
}

// Transcription is a partial transcript fragment for one speaker.
type Transcription struct {
	Text string `json:"text"`
}

// ServerContent is the per-message payload union. Any subset of fields may be
// present in a single message.
type ServerContent struct {
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
}

// AudioData returns the transport-text payloads of every inline audio part in
// the model turn, in part order.
func (c *ServerContent) AudioData() []string {
	if c == nil || c.ModelTurn == nil {
		return nil
	}
	var out []string
	for _, part := range c.ModelTurn.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			out = append(out, part.InlineData.Data)
		}
	}
	return out
}

// SetupComplete acknowledges a Setup frame.
type SetupComplete struct{}

// ServerMessage is one inbound frame. Exactly one of the envelope fields is
// set per frame.
type ServerMessage struct {
	SetupComplete *SetupComplete `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
}

// DecodeServerMessage parses a single inbound text frame.
func DecodeServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode server message: %w", err)
	}
	return &msg, nil
}

// Websocket close codes the classifier cares about. Kept local so the wire
// package stays transport-library agnostic.
const (
	CloseNormalClosure     = 1000
	CloseGoingAway         = 1001
	CloseInternalServerErr = 1011
)

// CloseClass categorizes how a connection ended.
type CloseClass int

const (
	// CloseClean is an orderly shutdown; not an error.
	CloseClean CloseClass = iota
	// CloseQuota means the remote service rejected the session for
	// billing/quota reasons. Requires enabling billing, not a retry.
	CloseQuota
	// CloseAbnormal is every other close; terminal for the session.
	CloseAbnormal
)

// String returns a stable name for logs.
func (c CloseClass) String() string {
	switch c {
	case CloseClean:
		return "clean"
	case CloseQuota:
		return "quota"
	default:
		return "abnormal"
	}
}

// ClassifyClose maps a close code and reason onto a CloseClass. The quota
// detection intentionally lives only here: the remote service signals billing
// rejection as an internal-error close whose reason mentions quota, which is
// a fragile third-party format that must not leak into callers.
func ClassifyClose(code int, reason string) CloseClass {
	switch code {
	case CloseNormalClosure, CloseGoingAway:
		return CloseClean
	case CloseInternalServerErr:
		if strings.Contains(strings.ToLower(reason), "quota") {
			return CloseQuota
		}
	}
	return CloseAbnormal
}
