package live

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSink struct {
	mu     sync.Mutex
	plays  [][]byte
	resets int
}

func (s *fakeSink) Play(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, pcm)
	return nil
}

func (s *fakeSink) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	return nil
}

func (s *fakeSink) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plays)
}

func (s *fakeSink) resetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// outputBuf returns a mono 24kHz buffer lasting d.
func outputBuf(d time.Duration) *SampleBuffer {
	frames := int(d * 24000 / time.Second)
	return &SampleBuffer{Channels: [][]float32{make([]float32, frames)}, SampleRate: 24000}
}

func TestScheduleNextGapless(t *testing.T) {
	clk := newFakeClock()
	sink := &fakeSink{}
	s := NewPlaybackScheduler(sink, clk.Now)

	t0 := clk.Now()
	var starts []time.Time
	for i := 0; i < 3; i++ {
		start, err := s.ScheduleNext(outputBuf(100 * time.Millisecond))
		if err != nil {
			t.Fatalf("ScheduleNext: %v", err)
		}
		starts = append(starts, start)
	}

	for i, want := range []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond} {
		if got := starts[i].Sub(t0); got != want {
			t.Errorf("buffer %d starts at +%v, want +%v", i, got, want)
		}
	}
	if sink.playCount() != 3 {
		t.Errorf("sink received %d buffers, want 3", sink.playCount())
	}
}

func TestScheduleNextAfterDrain(t *testing.T) {
	clk := newFakeClock()
	s := NewPlaybackScheduler(&fakeSink{}, clk.Now)

	s.ScheduleNext(outputBuf(50 * time.Millisecond))
	clk.Advance(time.Second)

	start, _ := s.ScheduleNext(outputBuf(50 * time.Millisecond))
	if !start.Equal(clk.Now()) {
		t.Errorf("post-drain buffer starts at %v, want now (%v)", start, clk.Now())
	}
}

func TestActiveCountPrunesFinishedUnits(t *testing.T) {
	clk := newFakeClock()
	s := NewPlaybackScheduler(&fakeSink{}, clk.Now)

	for i := 0; i < 3; i++ {
		s.ScheduleNext(outputBuf(100 * time.Millisecond))
	}
	if got := s.ActiveCount(); got != 3 {
		t.Fatalf("ActiveCount = %d, want 3", got)
	}

	clk.Advance(150 * time.Millisecond)
	if got := s.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount after 150ms = %d, want 2", got)
	}

	clk.Advance(time.Second)
	if got := s.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount after drain = %d, want 0", got)
	}
}

func TestCancelAllResetsTimeline(t *testing.T) {
	clk := newFakeClock()
	sink := &fakeSink{}
	s := NewPlaybackScheduler(sink, clk.Now)

	for i := 0; i < 5; i++ {
		s.ScheduleNext(outputBuf(200 * time.Millisecond))
	}
	if err := s.CancelAll(); err != nil {
		t.Fatalf("CancelAll: %v", err)
	}

	if sink.resetCount() != 1 {
		t.Errorf("sink resets = %d, want 1", sink.resetCount())
	}
	if got := s.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount after cancel = %d, want 0", got)
	}

	// The timeline restarts: the next buffer plays immediately, not after
	// the cancelled second of audio.
	start, _ := s.ScheduleNext(outputBuf(100 * time.Millisecond))
	if !start.Equal(clk.Now()) {
		t.Errorf("post-cancel buffer starts at %v, want now", start)
	}
}

func TestNilClockDefaultsToWallClock(t *testing.T) {
	s := NewPlaybackScheduler(&fakeSink{}, nil)
	before := time.Now()
	start, err := s.ScheduleNext(outputBuf(10 * time.Millisecond))
	if err != nil {
		t.Fatalf("ScheduleNext: %v", err)
	}
	if start.Before(before) {
		t.Errorf("start %v precedes call time %v", start, before)
	}
}
