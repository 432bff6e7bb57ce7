package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	xws "golang.org/x/net/websocket"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/resilience"
	"github.com/kbukum/floq/stream"
)

func wsServer(t *testing.T, handler func(ws *xws.Conn)) string {
	t.Helper()
	ts := httptest.NewServer(xws.Handler(handler))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func fastBackoff() resilience.RetryConfig {
	return resilience.RetryConfig{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffFactor: 2}
}

func TestTextSourceReadsUntilServerCloses(t *testing.T) {
	url := wsServer(t, func(ws *xws.Conn) {
		_ = xws.Message.Send(ws, "a b")
		_ = xws.Message.Send(ws, []byte{0x01, 0x02})
		_ = xws.Message.Send(ws, "c")
	})

	src, err := NewTextSource(Config{URL: url})
	if err != nil {
		t.Fatalf("NewTextSource: %v", err)
	}
	got, report, err := stream.Gather(context.Background(), stream.From(src))
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if strings.Join(got, "|") != "a b|c" {
		t.Fatalf("messages = %q", got)
	}
	if report.Status != stream.StatusCompleted {
		t.Errorf("status = %s", report.Status)
	}
}

func TestFrameSourceKeepsFrameTypes(t *testing.T) {
	url := wsServer(t, func(ws *xws.Conn) {
		_ = Send(ws, Frame{Type: TextFrame, Data: []byte("hello")})
		_ = Send(ws, Frame{Type: BinaryFrame, Data: []byte{0xff}})
	})

	src, err := NewSource(Config{URL: url})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	frames, _, err := stream.Gather(context.Background(), stream.From[Frame](src))
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Type != TextFrame || frames[0].Text() != "hello" {
		t.Errorf("frame 0 = %v %q", frames[0].Type, frames[0].Data)
	}
	if frames[1].Type != BinaryFrame || frames[1].Data[0] != 0xff {
		t.Errorf("frame 1 = %v %v", frames[1].Type, frames[1].Data)
	}
	if frames[0].Received.IsZero() {
		t.Error("expected receive time")
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	var conns atomic.Int32
	url := wsServer(t, func(ws *xws.Conn) {
		n := conns.Add(1)
		_ = xws.Message.Send(ws, "conn-"+string(rune('0'+n)))
	})

	src, err := NewTextSource(Config{URL: url, Reconnect: true}, WithBackoff(fastBackoff()))
	if err != nil {
		t.Fatalf("NewTextSource: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var rec stream.Recorder[string]
	sink := stream.Collect(func(ctx context.Context, v string) error {
		_ = rec.Consume(ctx, v)
		if len(rec.Values()) == 3 {
			cancel()
		}
		return nil
	})

	report, err := stream.RunFlow(ctx, stream.From(src), sink)
	if err != nil {
		t.Fatalf("RunFlow: %v", err)
	}
	if report.Status != stream.StatusCancelled {
		t.Errorf("status = %s, want cancelled", report.Status)
	}
	got := rec.Values()
	if len(got) < 3 || got[0] != "conn-1" || got[2] != "conn-3" {
		t.Fatalf("messages = %q", got)
	}
}

func TestReconnectGivesUp(t *testing.T) {
	ts := httptest.NewServer(xws.Handler(func(ws *xws.Conn) {
		_ = xws.Message.Send(ws, "only")
	}))
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	src, err := NewTextSource(Config{URL: url, Reconnect: true, MaxReconnects: 2}, WithBackoff(fastBackoff()))
	if err != nil {
		t.Fatalf("NewTextSource: %v", err)
	}

	sink := stream.Collect(func(context.Context, string) error {
		ts.Close()
		return nil
	})
	_, err = stream.RunFlow(context.Background(), stream.From(src), sink)
	if err == nil {
		t.Fatal("expected failure after reconnect budget")
	}
	if errors.CodeOf(err) != errors.ErrCodeSourceFailed {
		t.Errorf("code = %s, want SOURCE_FAILED", errors.CodeOf(err))
	}
}

func TestDialFailure(t *testing.T) {
	ts := httptest.NewServer(xws.Handler(func(*xws.Conn) {}))
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ts.Close()

	src, err := NewSource(Config{URL: url, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	_, _, err = stream.Gather(context.Background(), stream.From[Frame](src))
	if errors.CodeOf(err) != errors.ErrCodeSourceFailed {
		t.Fatalf("expected SOURCE_FAILED, got %v", err)
	}
}

func TestCancelWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	url := wsServer(t, func(ws *xws.Conn) { <-release })
	defer close(release)

	src, err := NewTextSource(Config{URL: url})
	if err != nil {
		t.Fatalf("NewTextSource: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, report, err := stream.Gather(ctx, stream.From(src))
	if err != nil {
		t.Fatalf("cancellation should not fail: %v", err)
	}
	if report.Status != stream.StatusCancelled {
		t.Errorf("status = %s, want cancelled", report.Status)
	}
}

func TestHeadersSent(t *testing.T) {
	seen := make(chan string, 1)
	url := wsServer(t, func(ws *xws.Conn) {
		seen <- ws.Request().Header.Get("Authorization")
	})

	src, err := NewSource(Config{URL: url, Headers: map[string]string{"Authorization": "Bearer t0k"}})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if _, _, err := stream.Gather(context.Background(), stream.From[Frame](src)); err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if got := <-seen; got != "Bearer t0k" {
		t.Fatalf("Authorization = %q", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid ws", Config{URL: "ws://localhost:8080/feed"}, false},
		{"valid wss", Config{URL: "wss://example.com"}, false},
		{"missing url", Config{}, true},
		{"http scheme", Config{URL: "http://example.com"}, true},
		{"negative buffer", Config{URL: "ws://x", Buffer: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSource(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && errors.CodeOf(err) != errors.ErrCodeInvalidConfig {
				t.Errorf("code = %s", errors.CodeOf(err))
			}
		})
	}
}
