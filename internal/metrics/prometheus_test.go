package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fk219/webbot-voice/pkg/live"
	"github.com/fk219/webbot-voice/pkg/live/protocol"
)

// The default registry rejects duplicate registration, so all tests share
// one Metrics instance.
var testMetrics = NewMetrics()

type stubTransport struct {
	msgs chan *protocol.ServerMessage
	sent int
}

func (t *stubTransport) Send(protocol.RealtimeInputMessage) error     { t.sent++; return nil }
func (t *stubTransport) Messages() <-chan *protocol.ServerMessage     { return t.msgs }
func (t *stubTransport) CloseStatus() (int, string)                   { return protocol.CloseNormalClosure, "" }
func (t *stubTransport) Err() error                                   { return nil }
func (t *stubTransport) Close() error                                 { return nil }

type stubDialer struct{ t live.Transport }

func (d *stubDialer) Dial(context.Context, protocol.Setup) (live.Transport, error) {
	return d.t, nil
}

func TestRecordUsageAccumulatesTokens(t *testing.T) {
	before := testutil.ToFloat64(testMetrics.UsageTokens)
	testMetrics.RecordUsage(live.EstimateTokens(10 * time.Second))
	testMetrics.RecordUsage(7)
	if got := testutil.ToFloat64(testMetrics.UsageTokens) - before; got != 27 {
		t.Errorf("usage tokens delta = %v, want 27", got)
	}
}

func TestMeteredTransportCounts(t *testing.T) {
	inner := &stubTransport{msgs: make(chan *protocol.ServerMessage, 4)}
	dialer := testMetrics.WrapDialer(&stubDialer{t: inner})

	tr, err := dialer.Dial(context.Background(), protocol.Setup{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	bytesBefore := testutil.ToFloat64(testMetrics.AudioBytesSent)
	if err := tr.Send(protocol.AudioChunk("abcd")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if inner.sent != 1 {
		t.Errorf("inner sends = %d, want 1", inner.sent)
	}
	if got := testutil.ToFloat64(testMetrics.AudioBytesSent) - bytesBefore; got != 4 {
		t.Errorf("audio bytes delta = %v, want 4", got)
	}

	msgsBefore := testutil.ToFloat64(testMetrics.ServerMessages)
	inner.msgs <- &protocol.ServerMessage{ServerContent: &protocol.ServerContent{Interrupted: true}}
	close(inner.msgs)

	// The relayed channel carries the message through and then closes.
	select {
	case msg := <-tr.Messages():
		if msg.ServerContent == nil || !msg.ServerContent.Interrupted {
			t.Errorf("relayed message = %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no relayed message")
	}
	if _, ok := <-tr.Messages(); ok {
		t.Error("relayed channel did not close")
	}

	if got := testutil.ToFloat64(testMetrics.ServerMessages) - msgsBefore; got != 1 {
		t.Errorf("server messages delta = %v, want 1", got)
	}
}
