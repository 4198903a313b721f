package live

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Speaker is the production Sink: a pull-based player on the default output
// device. Queued PCM plays back to back; Reset drops everything not yet
// played, including audio already handed to the device buffer.
type Speaker struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	player  *oto.Player
	playing bool
	closed  bool
	gen     int
}

// NewSpeaker opens the default output device for cfg's format and waits for
// it to become ready.
func NewSpeaker(cfg AudioConfig) (*Speaker, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms device buffer keeps barge-in latency low.
		BufferSize: time.Second / 10,
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	s := &Speaker{otoCtx: otoCtx}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Play queues interleaved PCM16 for playback, starting the player on the
// first write.
func (s *Speaker) Play(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("speaker closed")
	}

	s.buf = append(s.buf, pcm...)
	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(&speakerReader{s: s, gen: s.gen})
		s.player.Play()
	}
	s.cond.Signal()
	return nil
}

// speakerReader feeds one player. The generation tag pins it to the buffer
// state it was started against: after Reset a stale reader must not consume
// audio queued for its successor.
type speakerReader struct {
	s   *Speaker
	gen int
}

// Read is called by the output device to pull queued audio.
func (r *speakerReader) Read(p []byte) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed && r.gen == s.gen {
		s.cond.Wait()
	}
	if r.gen != s.gen {
		return 0, io.EOF
	}
	if s.closed && len(s.buf) == 0 {
		// Feed silence so the device drains instead of erroring.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Reset discards all queued audio and stops the current player so nothing
// already buffered in the device keeps playing. Readers from before the
// reset see EOF instead of newly queued audio.
func (s *Speaker) Reset() error {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.gen++
	player := s.player
	wasPlaying := s.playing
	s.player = nil
	s.playing = false
	s.mu.Unlock()
	s.cond.Broadcast()

	if player != nil && wasPlaying {
		player.Pause()
		player.Reset()
		player.Close()
	}
	return nil
}

// Close stops playback and releases the player. The speaker cannot be reused.
func (s *Speaker) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	player := s.player
	s.player = nil
	s.mu.Unlock()
	s.cond.Broadcast()

	if player != nil {
		player.Close()
	}
}
