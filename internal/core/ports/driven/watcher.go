package driven

import "context"

// Watcher delivers debounced change notifications for a directory tree.
type Watcher interface {
	// Watch blocks until ctx is cancelled, calling onChange after each burst of
	// filesystem events under root.
	Watch(ctx context.Context, root string, onChange func()) error
}
