package printer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/stream"
)

type temperature float64

func (t temperature) String() string { return "warm" }

func TestPrintsWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	sink := New[string]("out: ", WithWriter(&buf))

	flow := stream.From(stream.FromSlice([]string{"a", "b"}))
	if _, err := stream.RunFlow(context.Background(), flow, stream.Sink[string](sink)); err != nil {
		t.Fatalf("RunFlow: %v", err)
	}
	if buf.String() != "out: a\nout: b\n" {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestRendersValues(t *testing.T) {
	var buf bytes.Buffer
	counts := New[map[string]int]("", WithWriter(&buf))
	if err := counts.Consume(context.Background(), map[string]int{"b": 1, "a": 2}); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	stringer := New[temperature]("t=", WithWriter(&buf))
	if err := stringer.Consume(context.Background(), 21.5); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if buf.String() != "{\"a\":2,\"b\":1}\nt=warm\n" {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestUnencodableValue(t *testing.T) {
	sink := New[chan int]("", WithWriter(&bytes.Buffer{}))
	err := sink.Consume(context.Background(), make(chan int))
	if errors.CodeOf(err) != errors.ErrCodeSinkFailed {
		t.Fatalf("expected SINK_FAILED, got %v", err)
	}
}

func TestLogsValues(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "info", Format: "json"}, "test", &buf)
	sink := New[[]string]("result", WithLogger(log))

	if err := sink.Consume(context.Background(), []string{"x", "y"}); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "result" || entry["value"] != `["x","y"]` {
		t.Errorf("unexpected entry: %v", entry)
	}
	if !strings.Contains(buf.String(), "\"level\":\"info\"") {
		t.Errorf("expected info level: %s", buf.String())
	}
}
