// Package sse pushes pipeline results to browsers and terminals as
// Server-Sent Events.
//
// A Hub fans events out to connected clients; each client follows the
// topics matching its glob pattern and has a bounded buffer, so a slow
// reader only loses its own events. Sink turns a pipeline tail into hub
// publications, and Handler serves the hub from gin:
//
//	hub := sse.NewHub()
//	go hub.Run()
//	router.GET("/events", sse.Handler(hub))
//	task := stream.To(flow, sse.NewSink[map[string]int](hub, "word-count"))
//
//	curl -N 'localhost:8080/events?topic=word-*'
package sse
