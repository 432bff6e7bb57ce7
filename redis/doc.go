// Package redis connects pipelines to Redis through go-redis.
//
// StreamSource reads a stream with XREAD, either replaying it to its end
// or following it for new entries; Texts extracts the message field.
// StreamSink appends values with XADD. TypedStore keeps JSON values under
// prefixed keys and doubles as a sink holding the latest result:
//
//	store := redis.NewTypedStore[map[string]int](client, "floq")
//	task := stream.To(flow, store.Sink("word-counts", time.Hour))
//
// Component owns the Client for the component registry.
package redis
