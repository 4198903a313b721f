// Package metrics exposes Prometheus metrics for the voice client.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fk219/webbot-voice/pkg/live"
	"github.com/fk219/webbot-voice/pkg/live/protocol"
)

// Metrics contains all Prometheus metrics for the voice client
type Metrics struct {
	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsEnded   *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	ActiveSessions  prometheus.Gauge

	// Outbound audio metrics
	FramesSent     prometheus.Counter
	FramesDropped  prometheus.Counter
	AudioBytesSent prometheus.Counter

	// Inbound metrics
	ServerMessages    prometheus.Counter
	PlaybackScheduled prometheus.Counter
	Interruptions     prometheus.Counter

	// Transcript metrics
	TranscriptsFlushed *prometheus.CounterVec

	// Usage metrics
	UsageTokens prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_sessions_started_total",
			Help: "Total number of live sessions started",
		}),
		SessionsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_sessions_ended_total",
			Help: "Total number of live sessions ended, by outcome",
		}, []string{"outcome"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_session_duration_seconds",
			Help:    "Duration of live sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voice_active_sessions",
			Help: "Current number of active live sessions",
		}),

		// Outbound audio metrics
		FramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_frames_sent_total",
			Help: "Total number of capture frames sent to the service",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_frames_dropped_total",
			Help: "Total number of capture frames dropped instead of queued",
		}),
		AudioBytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_audio_bytes_sent_total",
			Help: "Total encoded audio payload bytes sent",
		}),

		// Inbound metrics
		ServerMessages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_server_messages_total",
			Help: "Total number of server messages received",
		}),
		PlaybackScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_playback_buffers_scheduled_total",
			Help: "Total number of output audio buffers scheduled for playback",
		}),
		Interruptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_interruptions_total",
			Help: "Total number of user barge-ins that cancelled playback",
		}),

		// Transcript metrics
		TranscriptsFlushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_transcripts_flushed_total",
			Help: "Total number of complete utterances flushed, by role",
		}, []string{"role"}),

		// Usage metrics
		UsageTokens: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_usage_tokens_total",
			Help: "Total estimated tokens billed for finished sessions and previews",
		}),
	}
}

// RecordSessionStarted increments the sessions started counter
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionEnded records a finished session with its outcome and duration
func (m *Metrics) RecordSessionEnded(outcome string, durationSeconds float64) {
	m.SessionsEnded.WithLabelValues(outcome).Inc()
	m.SessionDuration.Observe(durationSeconds)
	m.ActiveSessions.Dec()
}

// RecordFrameCounts records the final sent/dropped frame counters of a session
func (m *Metrics) RecordFrameCounts(sent, dropped int64) {
	m.FramesSent.Add(float64(sent))
	m.FramesDropped.Add(float64(dropped))
}

// RecordTranscriptFlush increments the flushed utterance counter for a role
func (m *Metrics) RecordTranscriptFlush(role live.Role) {
	m.TranscriptsFlushed.WithLabelValues(string(role)).Inc()
}

// RecordInterruption increments the barge-in counter
func (m *Metrics) RecordInterruption() {
	m.Interruptions.Inc()
}

// RecordUsage adds a session's estimated token count
func (m *Metrics) RecordUsage(tokens int) {
	m.UsageTokens.Add(float64(tokens))
}

// WrapDialer instruments a dialer so every established transport counts its
// traffic.
func (m *Metrics) WrapDialer(d live.Dialer) live.Dialer {
	return &meteredDialer{inner: d, m: m}
}

type meteredDialer struct {
	inner live.Dialer
	m     *Metrics
}

func (d *meteredDialer) Dial(ctx context.Context, setup protocol.Setup) (live.Transport, error) {
	t, err := d.inner.Dial(ctx, setup)
	if err != nil {
		return nil, err
	}
	return d.m.wrapTransport(t), nil
}

func (m *Metrics) wrapTransport(t live.Transport) live.Transport {
	mt := &meteredTransport{Transport: t, m: m, msgs: make(chan *protocol.ServerMessage, 256)}
	go mt.relay()
	return mt
}

type meteredTransport struct {
	live.Transport
	m    *Metrics
	msgs chan *protocol.ServerMessage
}

func (t *meteredTransport) Send(msg protocol.RealtimeInputMessage) error {
	if err := t.Transport.Send(msg); err != nil {
		return err
	}
	for _, chunk := range msg.RealtimeInput.MediaChunks {
		t.m.AudioBytesSent.Add(float64(len(chunk.Data)))
	}
	return nil
}

func (t *meteredTransport) Messages() <-chan *protocol.ServerMessage {
	return t.msgs
}

func (t *meteredTransport) relay() {
	defer close(t.msgs)
	for msg := range t.Transport.Messages() {
		t.m.ServerMessages.Inc()
		if msg.ServerContent != nil {
			t.m.PlaybackScheduled.Add(float64(len(msg.ServerContent.AudioData())))
			if msg.ServerContent.Interrupted {
				t.m.Interruptions.Inc()
			}
		}
		t.msgs <- msg
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}
