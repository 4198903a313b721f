package live

import (
	"strings"
	"sync"
)

// Role identifies who produced a transcript fragment.
type Role string

const (
	// RoleUser is speech transcribed from the microphone.
	RoleUser Role = "user"
	// RoleModel is the assistant's spoken output.
	RoleModel Role = "model"
)

// TranscriptAccumulator buffers partial transcription fragments per role and
// emits complete utterances at turn boundaries. Partials arrive as raw deltas
// and are concatenated as-is.
type TranscriptAccumulator struct {
	mu    sync.Mutex
	user  strings.Builder
	model strings.Builder
	emit  func(role Role, text string)
}

// NewTranscriptAccumulator returns an accumulator that calls emit once per
// flushed utterance. emit runs synchronously under the accumulator's lock, so
// flush order is emission order.
func NewTranscriptAccumulator(emit func(role Role, text string)) *TranscriptAccumulator {
	return &TranscriptAccumulator{emit: emit}
}

// AppendPartial adds a transcription fragment to the buffer for role.
func (a *TranscriptAccumulator) AppendPartial(role Role, text string) {
	if text == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	switch role {
	case RoleUser:
		a.user.WriteString(text)
	case RoleModel:
		a.model.WriteString(text)
	}
}

// FlushTurn emits any buffered utterances, user first, and clears the
// buffers. Whitespace-only buffers are discarded without emitting.
func (a *TranscriptAccumulator) FlushTurn() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked(RoleUser, &a.user)
	a.flushLocked(RoleModel, &a.model)
}

// DiscardModel drops any buffered assistant text without emitting it. Used
// when the user barges in and the pending response is abandoned.
func (a *TranscriptAccumulator) DiscardModel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.model.Reset()
}

func (a *TranscriptAccumulator) flushLocked(role Role, buf *strings.Builder) {
	text := strings.TrimSpace(buf.String())
	buf.Reset()
	if text == "" {
		return
	}
	if a.emit != nil {
		a.emit(role, text)
	}
}
