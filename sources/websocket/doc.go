// Package websocket streams frames from a websocket server into a pipeline,
// redialing with backoff when configured to.
package websocket
