// Package preview synthesizes short voice samples so users can hear a
// persona voice before starting a live session.
package preview

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/fk219/webbot-voice/pkg/live"
)

const (
	// previewModel is the TTS model used for one-shot voice samples.
	previewModel = "gemini-2.5-flash-preview-tts"

	// Tokens is the flat usage charge for one preview.
	Tokens = 50

	defaultSampleRate = 24000
)

// Service generates voice previews.
type Service struct {
	client *genai.Client
	model  string
}

// New creates a preview service authenticating with apiKey.
func New(ctx context.Context, apiKey string) (*Service, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init preview client: %w", err)
	}
	return &Service{client: client, model: previewModel}, nil
}

// DefaultScript returns the sample line spoken when no custom text is given.
func DefaultScript(voice string) string {
	return fmt.Sprintf("Hello, I am %s. This is a preview of my voice.", live.ResolveVoice(voice))
}

// Synthesize renders text in the given voice and returns the decoded audio.
func (s *Service) Synthesize(ctx context.Context, voice, text string) (*live.SampleBuffer, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultScript(voice)
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: live.ResolveVoice(voice),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("generate preview: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			rate := sampleRateFromMIME(part.InlineData.MIMEType)
			return live.DecodePCM16(part.InlineData.Data, rate, 1), nil
		}
	}
	return nil, fmt.Errorf("preview response contained no audio")
}

// sampleRateFromMIME extracts the rate parameter from an audio MIME type
// such as "audio/L16;codec=pcm;rate=24000".
func sampleRateFromMIME(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		param = strings.TrimSpace(param)
		if rest, ok := strings.CutPrefix(param, "rate="); ok {
			if rate, err := strconv.Atoi(rest); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return defaultSampleRate
}
