package kafka

import (
	kafkago "github.com/segmentio/kafka-go"
)

// WriterMetrics summarizes a sink's writer statistics for the status server.
type WriterMetrics struct {
	Writes     int64   `json:"writes"`
	Messages   int64   `json:"messages"`
	Bytes      int64   `json:"bytes"`
	Errors     int64   `json:"errors"`
	Retries    int64   `json:"retries"`
	AvgWriteMS float64 `json:"avg_write_ms"`
	Topic      string  `json:"topic,omitempty"`
}

// ReaderMetrics summarizes a source's reader statistics.
type ReaderMetrics struct {
	Fetches  int64  `json:"fetches"`
	Messages int64  `json:"messages"`
	Bytes    int64  `json:"bytes"`
	Errors   int64  `json:"errors"`
	Lag      int64  `json:"lag"`
	Topic    string `json:"topic"`
}

// CollectWriterMetrics extracts WriterMetrics from kafka-go writer stats.
func CollectWriterMetrics(stats kafkago.WriterStats) WriterMetrics {
	return WriterMetrics{
		Writes:     stats.Writes,
		Messages:   stats.Messages,
		Bytes:      stats.Bytes,
		Errors:     stats.Errors,
		Retries:    stats.Retries,
		AvgWriteMS: float64(stats.WriteTime.Avg) / 1e6,
		Topic:      stats.Topic,
	}
}

// CollectReaderMetrics extracts ReaderMetrics from kafka-go reader stats.
func CollectReaderMetrics(stats kafkago.ReaderStats) ReaderMetrics {
	return ReaderMetrics{
		Fetches:  stats.Fetches,
		Messages: stats.Messages,
		Bytes:    stats.Bytes,
		Errors:   stats.Errors,
		Lag:      stats.Lag,
		Topic:    stats.Topic,
	}
}
