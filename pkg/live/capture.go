package live

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// Frame is one fixed-size block of mono float samples from the microphone.
type Frame []float32

// CaptureStream pulls audio from the default microphone and delivers it as
// FrameSamples-sized float frames. The device callback runs on a realtime
// audio thread and only appends to an internal buffer; framing and delivery
// happen on a separate goroutine.
type CaptureStream struct {
	device *malgo.Device

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []float32
	started bool
	stopped bool
	done    chan struct{}
}

// OpenCapture initializes the default capture device at cfg's sample rate.
// Failure here means the microphone is unavailable or access was refused, and
// the session cannot proceed.
func OpenCapture(ctx malgo.Context, cfg AudioConfig) (*CaptureStream, error) {
	c := &CaptureStream{
		buf:  make([]float32, 0, cfg.SampleRate),
		done: make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			c.mu.Lock()
			for i := 0; i+3 < len(pInputSamples); i += 4 {
				bits := binary.LittleEndian.Uint32(pInputSamples[i:])
				c.buf = append(c.buf, math.Float32frombits(bits))
			}
			c.mu.Unlock()
			c.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(ctx, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	c.device = device
	return c, nil
}

// Start begins capturing and calls onFrame for every complete frame until
// Stop. onFrame runs on the consumer goroutine, never on the audio thread.
func (c *CaptureStream) Start(onFrame func(Frame)) error {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return fmt.Errorf("capture stream is not restartable")
	}
	c.started = true
	c.mu.Unlock()

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}

	go func() {
		defer close(c.done)
		for {
			c.mu.Lock()
			for len(c.buf) < FrameSamples && !c.stopped {
				c.cond.Wait()
			}
			if c.stopped {
				c.mu.Unlock()
				return
			}
			frame := make(Frame, FrameSamples)
			copy(frame, c.buf[:FrameSamples])
			c.buf = c.buf[:copy(c.buf, c.buf[FrameSamples:])]
			c.mu.Unlock()

			onFrame(frame)
		}
	}()
	return nil
}

// Stop halts capture and releases the device. Safe to call more than once
// and before Start.
func (c *CaptureStream) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	started := c.started
	c.mu.Unlock()
	c.cond.Broadcast()

	if c.device != nil {
		c.device.Stop()
		c.device.Uninit()
	}
	if started {
		<-c.done
	}
}
