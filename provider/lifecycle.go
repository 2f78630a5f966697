package provider

import "context"

// Closeable is implemented by backends holding connections. Manager.Close
// closes every initialized backend that has it.
type Closeable interface {
	Close(ctx context.Context) error
}
