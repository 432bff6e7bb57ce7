// Package kafka connects pipelines to Kafka topics through segmentio/kafka-go.
//
// Source reads a topic as a stream of Messages; Texts turns them into the
// plain strings the text operators work on. Sink publishes pipeline values,
// JSON-encoded unless another Encoder is given. Broker failures surface as
// SOURCE_FAILED and SINK_FAILED errors whose Retryable flag follows the
// broker's own classification, so resilience.RetrySink only retries what
// can recover.
//
// Component verifies broker reachability at startup and answers health
// probes for the status server.
//
//	kafka:
//	  enabled: true
//	  brokers: ["localhost:9092"]
//	  topic: posts
//	  group_id: floq
package kafka
