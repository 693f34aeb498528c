// Package version records build metadata injected at link time.
package version

// Set via -ldflags at release build time.
var (
	// Version is the semantic version of the binary.
	Version = "dev"

	// Commit is the git revision the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)
