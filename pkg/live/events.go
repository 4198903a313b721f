package live

// Event is the interface for all live session events.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StateChangedEvent is emitted when the session state changes.
type StateChangedEvent struct {
	From SessionState `json:"from"`
	To   SessionState `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// TranscriptEvent is emitted once per complete utterance, in flush order.
type TranscriptEvent struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func (e *TranscriptEvent) EventType() string { return "transcript" }

// InterruptedEvent is emitted when the user barges in over the assistant and
// pending playback is cancelled.
type InterruptedEvent struct{}

func (e *InterruptedEvent) EventType() string { return "interrupted" }

// DisconnectedEvent is the final event of every session, emitted exactly
// once. Err is nil when the session ended cleanly.
type DisconnectedEvent struct {
	Err *SessionError `json:"error,omitempty"`
}

func (e *DisconnectedEvent) EventType() string { return "disconnected" }

// DebugEvent carries internal diagnostics when debug mode is enabled.
type DebugEvent struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (e *DebugEvent) EventType() string { return "debug" }
