package gateway

import "github.com/papercomputeco/ollachat/pkg/session"

// Config is the gateway server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// Defaults fill in whatever a request leaves out
	Defaults session.Settings

	// ArchivePath is the path to the SQLite transcript archive.
	// Empty keeps transcripts in memory.
	ArchivePath string

	// Version is reported by /health and the MCP server
	Version string
}
