package live

import (
	"io"
	"sync"
	"testing"
	"time"
)

// newSpeakerShell builds a Speaker without an output device so the reader
// and reset bookkeeping can be exercised directly.
func newSpeakerShell() *Speaker {
	s := &Speaker{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func TestSpeakerReaderUnblocksOnReset(t *testing.T) {
	s := newSpeakerShell()
	stale := &speakerReader{s: s, gen: 0}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if n, err := stale.Read(make([]byte, 8)); n != 0 || err != io.EOF {
			t.Errorf("stale Read = (%d, %v), want (0, EOF)", n, err)
		}
	}()

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader still blocked after Reset")
	}
}

func TestSpeakerResetRoutesNewAudioPastStaleReader(t *testing.T) {
	s := newSpeakerShell()
	stale := &speakerReader{s: s, gen: 0}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	// Queue post-reset audio the way Play would.
	s.mu.Lock()
	s.buf = append(s.buf, 1, 2, 3, 4)
	gen := s.gen
	s.mu.Unlock()

	// The pre-reset reader must not consume it.
	if n, err := stale.Read(make([]byte, 4)); n != 0 || err != io.EOF {
		t.Fatalf("stale Read = (%d, %v), want (0, EOF)", n, err)
	}

	fresh := &speakerReader{s: s, gen: gen}
	p := make([]byte, 4)
	n, err := fresh.Read(p)
	if err != nil || n != 4 {
		t.Fatalf("fresh Read = (%d, %v), want (4, nil)", n, err)
	}
	for i, b := range []byte{1, 2, 3, 4} {
		if p[i] != b {
			t.Errorf("byte %d = %d, want %d", i, p[i], b)
		}
	}
}

func TestSpeakerReaderDrainsSilenceAfterClose(t *testing.T) {
	s := newSpeakerShell()
	r := &speakerReader{s: s, gen: 0}
	s.Close()

	p := []byte{9, 9, 9, 9}
	n, err := r.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read after close = (%d, %v), want (%d, nil)", n, err, len(p))
	}
	for i, b := range p {
		if b != 0 {
			t.Errorf("byte %d = %d, want silence", i, b)
		}
	}
}
