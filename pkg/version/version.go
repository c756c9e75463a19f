// Package version holds build-time version metadata for codegraphrag-mcp.
package version

import "fmt"

// Version and CommitHash are set at build time with -ldflags. Defaults are
// useful for local development.
var (
	Version    string = "dev"
	CommitHash string = "unknown"
)

// Describe returns a human-readable version string for --version output.
func Describe() string {
	return fmt.Sprintf("codegraphrag-mcp %s (%s)", Version, CommitHash)
}
