// Package eventstream publishes memory lifecycle events to a stream backend.
package eventstream

import "context"

// Publisher publishes memory events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
