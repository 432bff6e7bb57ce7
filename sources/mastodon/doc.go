// Package mastodon reads statuses from a Mastodon server's streaming API.
package mastodon
