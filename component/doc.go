// Package component defines lifecycle-managed application parts and the
// registry that starts and stops them.
//
// A Component has a name, Start/Stop and a Health report. The application
// registers broker connections, the status server and the pipeline monitor
// with a Registry, which starts them in registration order and stops them
// in reverse.
package component
