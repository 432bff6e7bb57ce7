package sse

// Broadcaster publishes events to subscribers of a topic.
type Broadcaster interface {
	Publish(topic string, ev Event)
}
