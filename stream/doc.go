// Package stream composes typed, pull-based pipelines and runs them.
//
// A pipeline is a Source, a chain of Operators and a Sink. Every step of
// every stage has one of three outcomes: Produced, Pending (nothing yet,
// poll again) or Exhausted. Filters drop by returning Pending; windows stay
// Pending until a flush.
//
// # Operators
//
//   - Filter, FilterErr, Match: keep messages matching a predicate or pattern
//   - Map, MapOne: transform batches; single messages are batches of one
//   - Reduce: fold batches into an accumulator, emitting it per batch
//   - Tumbling, Sliding, Counting: group messages into batches
//   - Tap: side-effect without altering the value
//   - Buffer: decouple a slow downstream from the producer
//   - Merge: combine sources concurrently (order NOT preserved)
//
// Operators compose with Then, which is associative. Flows are built with
// From and Via and closed with To; type mismatches between adjacent stages
// do not compile.
//
// # Usage
//
//	words := stream.Via(
//	    stream.Via(stream.From(src), stream.Tumbling[string](5*time.Second)),
//	    stream.Reduce(nil, countWords),
//	)
//	report, err := stream.To(words, printer).Run(ctx)
//
// Run returns when the source is exhausted, ctx is cancelled (a clean
// completion with StatusCancelled) or a stage fails under AbortOnError.
// User callbacks that fail or panic surface as *StageError.
package stream
