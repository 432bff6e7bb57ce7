// Package printer provides a sink that writes pipeline results to stdout
// or to the log.
package printer
