// Package api provides the HTTP API server in front of the memory engine.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// RetentionDays is the age used by POST /v1/cleanup when the request
	// does not name one.
	RetentionDays int

	// DisableMCP serves an MCP endpoint with no tools.
	DisableMCP bool
}
