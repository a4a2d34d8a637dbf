package eventstream

import "errors"

var (
	// ErrNilEvent indicates a nil event was provided to a publisher.
	ErrNilEvent = errors.New("nil event")

	// ErrQueueFull is returned by asynchronous publishers that drop events
	// under backpressure.
	ErrQueueFull = errors.New("event queue full")

	// ErrClosed is returned when publishing to a closed publisher.
	ErrClosed = errors.New("publisher closed")
)
