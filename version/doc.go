// Package version reports the build of the floq binary.
//
// Version, Commit and BuildTime are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/floq/version.Version=0.2.0" ./cmd/floq
//
// Unset values are filled from the VCS stamp the Go toolchain embeds.
package version
