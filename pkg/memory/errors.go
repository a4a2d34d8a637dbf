package memory

import "errors"

var (
	// ErrProviderUnavailable is recorded when an embedding cannot be obtained.
	// The engine recovers from it locally and never returns it from
	// AddMessage or BuildContext.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrEmptyChunk is returned when summarizing zero messages.
	ErrEmptyChunk = errors.New("cannot summarize an empty chunk")

	// ErrInvalidInput is returned for missing identifiers or out of range
	// arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedSnapshot is returned by Restore for unknown snapshot
	// versions.
	ErrUnsupportedSnapshot = errors.New("unsupported snapshot version")
)
