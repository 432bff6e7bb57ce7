package redis

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/stream"
)

type wordCounts map[string]int

func TestTypedStore_SaveAndLoad(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[wordCounts](client, "floq")
	ctx := context.Background()

	counts := wordCounts{"a": 2, "b": 1}
	if err := store.Save(ctx, "counts", &counts, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Load(ctx, "counts")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil || (*got)["a"] != 2 || (*got)["b"] != 1 {
		t.Fatalf("Load() = %v", got)
	}
}

func TestTypedStore_LoadMissing(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[wordCounts](client, "floq")

	got, err := store.Load(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing key, got %+v", got)
	}
}

func TestTypedStore_LoadCorrupt(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[wordCounts](client, "floq")
	mini.Set("floq:counts", "{not json")

	_, err := store.Load(context.Background(), "counts")
	if errors.CodeOf(err) != errors.ErrCodeDecodeFailed {
		t.Fatalf("expected DECODE_FAILED, got %v", err)
	}
}

func TestTypedStore_Delete(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[wordCounts](client, "floq")
	ctx := context.Background()

	counts := wordCounts{"a": 1}
	if err := store.Save(ctx, "counts", &counts, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "counts"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mini.Exists("floq:counts") {
		t.Fatal("expected key to be gone")
	}
}

func TestTypedStore_TTL(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[wordCounts](client, "floq")
	ctx := context.Background()

	counts := wordCounts{"a": 1}
	if err := store.Save(ctx, "counts", &counts, 2*time.Second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	mini.FastForward(3 * time.Second)

	got, err := store.Load(ctx, "counts")
	if err != nil {
		t.Fatalf("Load after TTL failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after TTL expiration, got %+v", got)
	}
}

func TestTypedStore_KeyPrefix(t *testing.T) {
	client, mini := newTestClient(t)
	ctx := context.Background()
	counts := wordCounts{"a": 1}

	if err := NewTypedStore[wordCounts](client, "myprefix").Save(ctx, "k1", &counts, 0); err != nil {
		t.Fatal(err)
	}
	if err := NewTypedStore[wordCounts](client, "").Save(ctx, "bare-key", &counts, 0); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"myprefix:k1", "bare-key"} {
		if raw, err := mini.Get(key); err != nil || raw == "" {
			t.Errorf("expected value at %q, err: %v", key, err)
		}
	}
}

func TestTypedStore_SinkKeepsLatest(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[wordCounts](client, "floq")

	running := []wordCounts{{"a": 1}, {"a": 1, "b": 1}, {"a": 2, "b": 1}}
	report, err := stream.RunFlow(context.Background(), stream.From(stream.FromSlice(running)), store.Sink("latest", 0))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Delivered != 3 {
		t.Errorf("delivered %d, want 3", report.Delivered)
	}
	raw, err := mini.Get("floq:latest")
	if err != nil {
		t.Fatal(err)
	}
	if raw != `{"a":2,"b":1}` {
		t.Errorf("stored %s", raw)
	}
}
