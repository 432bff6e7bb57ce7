package sse

// Event types written on the "event:" line.
const (
	// EventTypeConnected is sent once when a client connects.
	EventTypeConnected = "connected"

	// EventTypeResult carries one value delivered by a pipeline sink.
	EventTypeResult = "result"

	// EventTypeStats carries a pipeline monitor snapshot.
	EventTypeStats = "stats"
)
