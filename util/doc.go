// Package util holds small parsing and display helpers shared by the
// floq command and its connectors.
package util
