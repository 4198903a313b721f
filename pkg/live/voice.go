package live

import "strings"

// DefaultVoice is used when a requested voice cannot be resolved.
const DefaultVoice = "Kore"

var supportedVoices = map[string]string{
	"puck":   "Puck",
	"charon": "Charon",
	"kore":   "Kore",
	"fenrir": "Fenrir",
	"aoede":  "Aoede",
}

// voiceAliases maps common voice names from other providers onto the closest
// supported equivalent.
var voiceAliases = map[string]string{
	"alloy":   "Puck",
	"echo":    "Fenrir",
	"fable":   "Charon",
	"onyx":    "Fenrir",
	"nova":    "Aoede",
	"shimmer": "Aoede",
}

// ResolveVoice maps a requested voice name onto a supported prebuilt voice.
// Supported names pass through with canonical casing, known aliases map to
// their equivalent, and anything else falls back to DefaultVoice.
func ResolveVoice(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return DefaultVoice
	}
	if v, ok := supportedVoices[key]; ok {
		return v
	}
	if v, ok := voiceAliases[key]; ok {
		return v
	}
	return DefaultVoice
}

// SupportedVoices returns the prebuilt voice names accepted by the service.
func SupportedVoices() []string {
	return []string{"Puck", "Charon", "Kore", "Fenrir", "Aoede"}
}
