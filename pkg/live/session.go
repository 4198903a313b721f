package live

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fk219/webbot-voice/pkg/live/protocol"
)

// SessionState tracks where a session is in its lifecycle.
type SessionState int32

const (
	// StateIdle is a session that has not connected yet.
	StateIdle SessionState = iota
	// StateConnecting means the microphone and transport are being set up.
	StateConnecting
	// StateStreaming means audio is flowing both ways.
	StateStreaming
	// StateClosing means a user-initiated disconnect is in progress.
	StateClosing
	// StateClosed is a cleanly ended session.
	StateClosed
	// StateFailed is a session that ended with a terminal error.
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Dialer establishes a transport for a session. Dial returns only after the
// service has acknowledged setup, so a returned Transport is ready to send.
type Dialer interface {
	Dial(ctx context.Context, setup protocol.Setup) (Transport, error)
}

// Transport is an established bidirectional connection to the voice service.
type Transport interface {
	// Send writes one realtime input message. It must not queue: a failed
	// send is dropped by the caller.
	Send(msg protocol.RealtimeInputMessage) error

	// Messages delivers inbound server messages. The channel closes when
	// the connection ends for any reason.
	Messages() <-chan *protocol.ServerMessage

	// CloseStatus reports the close code and reason once Messages has
	// closed. Before that it reports zero values.
	CloseStatus() (code int, reason string)

	// Err returns the read error that ended the connection, or nil if it
	// closed with a close frame.
	Err() error

	// Close initiates a clean shutdown.
	Close() error
}

// Microphone is an open capture device. CaptureStream is the production
// implementation.
type Microphone interface {
	Start(onFrame func(Frame)) error
	Stop()
}

// MicSource opens the microphone. Opening fails when the device is
// unavailable or access is denied, which is terminal for the session.
type MicSource func() (Microphone, error)

// UsageRecord summarizes one finished session for billing attribution.
type UsageRecord struct {
	SessionID       string
	UserID          string
	ProjectID       string
	Duration        time.Duration
	EstimatedTokens int
	IsTest          bool
}

// UsageRecorder persists usage records. Recording happens at most once per
// session, and only if streaming actually started.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec UsageRecord) error
}

// TranscriptSink persists flushed utterances.
type TranscriptSink interface {
	SaveTranscript(ctx context.Context, sessionID string, role Role, text string) error
}

// collaboratorTimeout bounds persistence calls made during shutdown.
const collaboratorTimeout = 5 * time.Second

// Session is one live voice conversation: microphone in, scheduled speech
// out, transcripts and usage persisted on the side.
//
// Lifecycle: idle -> connecting -> streaming -> closing -> closed, with
// failed reachable from connecting and streaming. Consumers observe it
// through Events; the channel always ends with exactly one
// DisconnectedEvent.
type Session struct {
	config  SessionConfig
	dialer  Dialer
	openMic MicSource

	scheduler   *PlaybackScheduler
	accum       *TranscriptAccumulator
	usage       UsageRecorder
	transcripts TranscriptSink

	mu        sync.RWMutex
	state     SessionState
	transport Transport
	mic       Microphone
	startedAt time.Time

	events       chan Event
	done         chan struct{}
	closed       atomic.Bool
	teardownOnce sync.Once

	framesSent    atomic.Int64
	framesDropped atomic.Int64

	now          func() time.Time
	debugEnabled bool
}

// NewSession creates a session. dialer, openMic, and sink are required; usage
// and transcript persistence are attached separately.
func NewSession(config SessionConfig, dialer Dialer, openMic MicSource, sink Sink) *Session {
	if config.SessionID == "" {
		config.SessionID = fmt.Sprintf("live_%d", time.Now().UnixNano())
	}
	s := &Session{
		config:  config,
		dialer:  dialer,
		openMic: openMic,
		state:   StateIdle,
		events:  make(chan Event, 128),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	s.scheduler = NewPlaybackScheduler(sink, func() time.Time { return s.now() })
	s.accum = NewTranscriptAccumulator(s.onUtterance)
	return s
}

// SetUsageRecorder attaches usage persistence. Call before Connect.
func (s *Session) SetUsageRecorder(r UsageRecorder) { s.usage = r }

// SetTranscriptSink attaches transcript persistence. Call before Connect.
func (s *Session) SetTranscriptSink(t TranscriptSink) { s.transcripts = t }

// EnableDebug turns on debug logging and debug event emission.
func (s *Session) EnableDebug() { s.debugEnabled = true }

// SessionID returns the session identifier.
func (s *Session) SessionID() string { return s.config.SessionID }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Events returns the channel for receiving session events. It closes after
// the final DisconnectedEvent.
func (s *Session) Events() <-chan Event { return s.events }

// FrameCounts reports how many capture frames were sent and dropped.
func (s *Session) FrameCounts() (sent, dropped int64) {
	return s.framesSent.Load(), s.framesDropped.Load()
}

// Connect opens the microphone, dials the service, and starts streaming.
// On failure the session is terminal and the returned error is a
// *SessionError describing what the user should do.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.state = StateConnecting
	s.mu.Unlock()
	s.stateChanged(StateIdle, StateConnecting)

	mic, err := s.openMic()
	if err != nil {
		serr := permissionDeniedError(err)
		s.failTerminal(serr)
		return serr
	}
	s.mu.Lock()
	if s.closed.Load() {
		// Disconnect raced the mic open and already tore down without a
		// mic to stop, so this one is ours to release.
		s.mu.Unlock()
		mic.Stop()
		return fmt.Errorf("session closed during connect")
	}
	s.mic = mic
	s.mu.Unlock()

	transport, err := s.dialer.Dial(ctx, s.config.Setup())
	if err != nil {
		serr := connectionFailedError(err)
		s.failTerminal(serr)
		return serr
	}
	if s.closed.Load() {
		// Disconnect raced the dial.
		transport.Close()
		return fmt.Errorf("session closed during connect")
	}

	s.mu.Lock()
	s.transport = transport
	s.startedAt = s.now()
	s.mu.Unlock()
	s.setState(StateStreaming)
	s.debug("SESSION", fmt.Sprintf("Streaming started, voice=%s model=%s", ResolveVoice(s.config.Voice), s.config.Model))

	go s.receiveLoop(transport)

	if err := mic.Start(s.onFrame); err != nil {
		serr := &SessionError{
			Kind:    FailurePermissionDenied,
			Message: "Microphone could not be started. Please check your audio devices and try again.",
			Err:     err,
		}
		s.closed.Store(true)
		s.teardown(serr)
		transport.Close()
		return serr
	}
	return nil
}

// Disconnect ends the session cleanly. Safe to call repeatedly and from any
// state; only the first call does anything.
func (s *Session) Disconnect() {
	if s.closed.Swap(true) {
		return
	}
	s.setState(StateClosing)
	s.debug("SESSION", "Disconnect requested")

	s.mu.RLock()
	transport := s.transport
	s.mu.RUnlock()

	if transport != nil {
		// The receive loop finishes teardown once the connection drains.
		transport.Close()
		return
	}
	s.teardown(nil)
}

// Wait blocks until the session has fully shut down.
func (s *Session) Wait() { <-s.done }

// onFrame handles one capture frame. Frames are sent immediately or dropped,
// never queued: a frame that cannot go out now is worthless later.
func (s *Session) onFrame(frame Frame) {
	s.mu.RLock()
	transport := s.transport
	streaming := s.state == StateStreaming
	s.mu.RUnlock()

	if transport == nil || !streaming {
		s.framesDropped.Add(1)
		return
	}

	msg := protocol.AudioChunk(ToTransportText(EncodePCM16(frame)))
	if err := transport.Send(msg); err != nil {
		s.framesDropped.Add(1)
		// Still streaming means the transport just broke under us; the
		// receive loop will classify and surface it.
		if s.State() == StateStreaming && !s.closed.Load() {
			s.debug("AUDIO", fmt.Sprintf("Send failed, frame dropped: %v", err))
		}
		return
	}
	s.framesSent.Add(1)
}

func (s *Session) receiveLoop(transport Transport) {
	for msg := range transport.Messages() {
		s.handleServerMessage(msg)
	}

	if s.closed.Load() {
		s.teardown(nil)
		return
	}

	if err := transport.Err(); err != nil {
		s.closed.Store(true)
		s.teardown(transportError(err))
		return
	}

	code, reason := transport.CloseStatus()
	s.closed.Store(true)
	switch protocol.ClassifyClose(code, reason) {
	case protocol.CloseClean:
		s.teardown(nil)
	case protocol.CloseQuota:
		s.teardown(quotaExceededError())
	default:
		s.teardown(transportError(fmt.Errorf("connection closed: code=%d reason=%q", code, reason)))
	}
}

func (s *Session) handleServerMessage(msg *protocol.ServerMessage) {
	sc := msg.ServerContent
	if sc == nil {
		return
	}

	if sc.InputTranscription != nil {
		s.accum.AppendPartial(RoleUser, sc.InputTranscription.Text)
	}
	if sc.OutputTranscription != nil {
		s.accum.AppendPartial(RoleModel, sc.OutputTranscription.Text)
	}
	if sc.TurnComplete {
		s.debug("TRANSCRIPT", "Turn complete, flushing")
		s.accum.FlushTurn()
	}
	if sc.Interrupted {
		s.handleInterruption()
		return
	}

	for _, data := range sc.AudioData() {
		pcm, err := FromTransportText(data)
		if err != nil {
			s.debug("AUDIO", fmt.Sprintf("Bad audio payload: %v", err))
			continue
		}
		buf := DecodePCM16(pcm, protocol.OutputSampleRateHz, protocol.OutputChannels)
		if _, err := s.scheduler.ScheduleNext(buf); err != nil {
			s.debug("AUDIO", fmt.Sprintf("Playback failed: %v", err))
		}
	}
}

// handleInterruption runs when the user barges in: everything scheduled is
// cancelled and the half-spoken response is dropped, then streaming resumes.
func (s *Session) handleInterruption() {
	s.debug("SESSION", "Interrupted by user, cancelling playback")
	if err := s.scheduler.CancelAll(); err != nil {
		s.debug("AUDIO", fmt.Sprintf("Cancel failed: %v", err))
	}
	s.accum.DiscardModel()
	s.emit(&InterruptedEvent{})
}

// onUtterance receives flushed utterances from the accumulator, in order.
func (s *Session) onUtterance(role Role, text string) {
	s.emit(&TranscriptEvent{Role: role, Text: text})
	if s.transcripts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()
	if err := s.transcripts.SaveTranscript(ctx, s.config.SessionID, role, text); err != nil {
		s.debug("TRANSCRIPT", fmt.Sprintf("Save failed: %v", err))
	}
}

// failTerminal ends a session that never reached streaming.
func (s *Session) failTerminal(serr *SessionError) {
	s.closed.Store(true)
	s.teardown(serr)
}

// teardown releases everything and emits the final event. Runs at most once
// no matter how the session ends.
func (s *Session) teardown(serr *SessionError) {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		mic := s.mic
		startedAt := s.startedAt
		s.mu.Unlock()

		if mic != nil {
			mic.Stop()
		}
		s.accum.FlushTurn()
		s.scheduler.CancelAll()

		if s.usage != nil && !startedAt.IsZero() {
			dur := s.now().Sub(startedAt)
			rec := UsageRecord{
				SessionID:       s.config.SessionID,
				UserID:          s.config.UserID,
				ProjectID:       s.config.ProjectID,
				Duration:        dur,
				EstimatedTokens: EstimateTokens(dur),
				IsTest:          s.config.IsTest,
			}
			ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
			if err := s.usage.RecordUsage(ctx, rec); err != nil {
				s.debug("USAGE", fmt.Sprintf("Record failed: %v", err))
			}
			cancel()
		}

		if serr != nil {
			s.setState(StateFailed)
			s.debug("SESSION", fmt.Sprintf("Session failed: %v", serr))
		} else {
			s.setState(StateClosed)
			s.debug("SESSION", "Session closed")
		}

		s.deliverFinal(&DisconnectedEvent{Err: serr})
		close(s.done)
		close(s.events)
	})
}

// EstimateTokens converts audio duration into the billed token estimate,
// two tokens per second rounded up.
func EstimateTokens(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds() * 2))
}

func (s *Session) setState(newState SessionState) {
	s.mu.Lock()
	oldState := s.state
	s.state = newState
	s.mu.Unlock()
	s.stateChanged(oldState, newState)
}

func (s *Session) stateChanged(from, to SessionState) {
	if from == to {
		return
	}
	s.debug("SESSION", fmt.Sprintf("State: %s -> %s", from, to))
	s.emit(&StateChangedEvent{From: from, To: to})
}

// emit sends an event to the events channel without blocking.
func (s *Session) emit(event Event) {
	select {
	case s.events <- event:
	case <-s.done:
	default:
		// Channel full, drop event
	}
}

// deliverFinal puts the terminal event on the channel no matter how far
// behind the consumer is, evicting the oldest buffered event when the
// channel is full. Regular events may be dropped; the disconnect
// notification may not.
func (s *Session) deliverFinal(event Event) {
	for {
		select {
		case s.events <- event:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// debug logs a debug message if debug mode is enabled.
// Logs are printed to stderr with timestamps for visibility.
func (s *Session) debug(category, message string) {
	if s.debugEnabled {
		timestamp := time.Now().Format("15:04:05.000")
		fmt.Fprintf(os.Stderr, "\033[90m%s\033[0m [\033[36m%-10s\033[0m] %s\n", timestamp, category, message)
		s.emit(&DebugEvent{Category: category, Message: message})
	}
}
