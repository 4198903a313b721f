package live

import (
	"sync"
	"time"
)

// Sink receives scheduled playback audio. Play appends interleaved PCM16 to
// the output queue; Reset discards everything queued but not yet played.
type Sink interface {
	Play(pcm []byte) error
	Reset() error
}

// PlaybackUnit is one scheduled buffer.
type PlaybackUnit struct {
	StartAt time.Time
	EndAt   time.Time
}

// PlaybackScheduler lays decoded output buffers end to end on a monotonic
// timeline so consecutive chunks play gapless, and cancels everything in
// flight when the user barges in.
//
// The schedule cursor is the earliest time the next buffer may start: each
// buffer starts at max(cursor, now) and advances the cursor by its duration.
// The cursor only moves forward between resets.
type PlaybackScheduler struct {
	sink Sink
	now  func() time.Time

	mu       sync.Mutex
	nextFree time.Time
	active   []PlaybackUnit
}

// NewPlaybackScheduler returns a scheduler writing to sink. now may be nil,
// in which case time.Now is used.
func NewPlaybackScheduler(sink Sink, now func() time.Time) *PlaybackScheduler {
	if now == nil {
		now = time.Now
	}
	return &PlaybackScheduler{sink: sink, now: now}
}

// ScheduleNext queues buf to play immediately after everything already
// scheduled, or right away if the timeline has drained. It returns the unit's
// start time.
func (s *PlaybackScheduler) ScheduleNext(buf *SampleBuffer) (time.Time, error) {
	now := s.now()

	s.mu.Lock()
	startAt := now
	if s.nextFree.After(now) {
		startAt = s.nextFree
	}
	unit := PlaybackUnit{StartAt: startAt, EndAt: startAt.Add(buf.Duration())}
	s.nextFree = unit.EndAt
	s.pruneLocked(now)
	s.active = append(s.active, unit)
	s.mu.Unlock()

	// The sink owns pacing: queued audio plays back to back, matching the
	// computed timeline.
	if err := s.sink.Play(buf.PCM16()); err != nil {
		return startAt, err
	}
	return startAt, nil
}

// CancelAll stops all in-flight playback, clears the active set, and resets
// the schedule cursor so the next buffer starts immediately.
func (s *PlaybackScheduler) CancelAll() error {
	s.mu.Lock()
	s.active = nil
	s.nextFree = time.Time{}
	s.mu.Unlock()
	return s.sink.Reset()
}

// ActiveCount returns how many scheduled units have not yet finished playing.
func (s *PlaybackScheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	return len(s.active)
}

func (s *PlaybackScheduler) pruneLocked(now time.Time) {
	kept := s.active[:0]
	for _, u := range s.active {
		if u.EndAt.After(now) {
			kept = append(kept, u)
		}
	}
	s.active = kept
}
