// Package bluesky reads new posts from the Bluesky repository firehose.
//
// Each binary frame carries two CBOR values, a header and a body. Commit
// bodies embed the changed records as a CAR archive; records of type
// app.bsky.feed.post become Posts.
package bluesky
