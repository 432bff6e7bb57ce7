package sse

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/floq/stream"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.ID())
		return Event{}
	}
}

func TestClient_DefaultsToAllTopics(t *testing.T) {
	c := NewClient("c1", "")
	if c.Pattern() != "*" {
		t.Errorf("expected pattern '*', got %q", c.Pattern())
	}
	if !c.matches("word-count") {
		t.Error("expected '*' to match any topic")
	}
}

func TestClient_SendDropsWhenFull(t *testing.T) {
	c := NewClient("c1", "*")
	for i := 0; i < clientBuffer; i++ {
		if !c.send(Event{Data: []byte("msg")}) {
			t.Fatalf("send %d failed before the buffer was full", i)
		}
	}
	if c.send(Event{Data: []byte("overflow")}) {
		t.Error("expected send to fail when the buffer is full")
	}
	if c.Dropped() != 1 {
		t.Errorf("expected 1 dropped event, got %d", c.Dropped())
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := startHub(t)
	c := NewClient("c1", "*")

	if !hub.Register(c) {
		t.Fatal("register failed")
	}
	waitForClients(t, hub, 1)
	if ids := hub.ClientIDs(); len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("unexpected client IDs %v", ids)
	}

	hub.Unregister(c)
	waitForClients(t, hub, 0)
	if _, open := <-c.Events(); open {
		t.Error("expected events channel to be closed after unregister")
	}
}

func TestHub_PublishMatchesTopics(t *testing.T) {
	hub := startHub(t)
	counts := NewClient("counts", "word-*")
	everything := NewClient("all", "*")
	stats := NewClient("stats", "stats")
	for _, c := range []*Client{counts, everything, stats} {
		hub.Register(c)
	}
	waitForClients(t, hub, 3)

	hub.Publish("word-count", Event{Type: EventTypeResult, Data: []byte(`{"a":1}`)})

	for _, c := range []*Client{counts, everything} {
		ev := receive(t, c)
		if ev.Type != EventTypeResult || string(ev.Data) != `{"a":1}` {
			t.Errorf("%s got %+v", c.ID(), ev)
		}
	}
	hub.Publish("stats", Event{Type: EventTypeStats, Data: []byte(`{}`)})
	if ev := receive(t, stats); ev.Type != EventTypeStats {
		t.Errorf("stats client got %+v, expected only the stats event", ev)
	}
}

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := startHub(t)

	var wg sync.WaitGroup
	clients := make([]*Client, 10)
	for i := range clients {
		clients[i] = NewClient(fmt.Sprintf("client-%d", i), "*")
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.Register(c)
		}(clients[i])
	}
	wg.Wait()
	waitForClients(t, hub, 10)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Publish("t", Event{Data: []byte("concurrent")})
		}()
	}
	wg.Wait()

	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.Unregister(c)
		}(c)
	}
	wg.Wait()
	waitForClients(t, hub, 0)
}

func TestHub_StopClosesClientsAndUnblocks(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()
	c := NewClient("c1", "*")
	hub.Register(c)
	waitForClients(t, hub, 1)

	hub.Stop()
	hub.Stop()
	<-done

	if _, open := <-c.Events(); open {
		t.Error("expected client channel closed on stop")
	}
	if hub.Register(NewClient("late", "*")) {
		t.Error("expected register after stop to fail")
	}
	hub.Unregister(c)
	hub.Publish("t", Event{Data: []byte("ignored")})
}

func TestSink_PublishesJSON(t *testing.T) {
	hub := startHub(t)
	c := NewClient("c1", "word-count")
	hub.Register(c)
	waitForClients(t, hub, 1)

	sink := NewSink[map[string]int](hub, "word-count")
	counts := []map[string]int{{"a": 1}, {"a": 1, "b": 2}}
	if _, err := stream.RunFlow(context.Background(), stream.From(stream.FromSlice(counts)), stream.Sink[map[string]int](sink)); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	first, second := receive(t, c), receive(t, c)
	if first.ID != "1" || second.ID != "2" {
		t.Errorf("event IDs %q %q, want 1 2", first.ID, second.ID)
	}
	if string(second.Data) != `{"a":1,"b":2}` {
		t.Errorf("data = %s", second.Data)
	}
	if sink.Name() != "sse:word-count" {
		t.Errorf("Name() = %q", sink.Name())
	}
}

func TestSink_NeverBlocksOnSlowClients(t *testing.T) {
	hub := startHub(t)
	slow := NewClient("slow", "*")
	hub.Register(slow)
	waitForClients(t, hub, 1)

	sink := NewSink[int](hub, "n")
	n := clientBuffer * 2
	for i := 0; i < n; i++ {
		if err := sink.Consume(context.Background(), i); err != nil {
			t.Fatal(err)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.Published() < int64(n) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if slow.Dropped() != int64(n-clientBuffer) {
		t.Errorf("dropped %d, want %d", slow.Dropped(), n-clientBuffer)
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	comp := NewComponent("/events")
	ctx := context.Background()

	if h := comp.Health(ctx); h.Status != "unhealthy" {
		t.Errorf("expected unhealthy before start, got %q", h.Status)
	}
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	comp.Hub().Register(NewClient("c1", "*"))
	waitForClients(t, comp.Hub(), 1)

	h := comp.Health(ctx)
	if h.Status != "healthy" || !strings.Contains(h.Message, "1 clients") {
		t.Errorf("unexpected health %+v", h)
	}
	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if d := comp.Describe(); d.Type != "sse" || d.Details != "path=/events" {
		t.Errorf("Describe() = %+v", d)
	}
}

func TestHandler_StreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)
	router := gin.New()
	router.GET("/events", Handler(hub))
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?topic=word-count", http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	r := bufio.NewReader(resp.Body)
	readEvent := func() []string {
		var lines []string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return lines
			}
			lines = append(lines, line)
		}
	}

	connected := readEvent()
	if connected[0] != "event: connected" || !strings.Contains(connected[1], `"topic":"word-count"`) {
		t.Fatalf("unexpected connected event %q", connected)
	}
	waitForClients(t, hub, 1)

	hub.Publish("other", Event{Type: EventTypeResult, Data: []byte("skip")})
	hub.Publish("word-count", Event{Type: EventTypeResult, ID: "7", Data: []byte(`{"a":1}`)})
	got := readEvent()
	want := []string{"event: result", "id: 7", `data: {"a":1}`}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("event = %q, want %q", got, want)
	}
}
