package kis

import "sync"

// Registry tracks per-instrument watcher counts. Entries are never
// removed once created, even at zero watchers: keeping them avoids
// subscribe/unsubscribe churn against the upstream feed, and growth is
// bounded by the instrument universe.
type Registry struct {
	mu       sync.Mutex
	watchers map[string]uint
}

func NewRegistry() *Registry {
	return &Registry{watchers: make(map[string]uint)}
}

// Subscribe increments the watcher count for code and reports whether
// this watcher is the first one, i.e. whether an upstream subscription
// frame is due. Check-and-increment is atomic: concurrent first
// subscribes for the same code yield exactly one true.
func (r *Registry) Subscribe(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.watchers[code]++
	return r.watchers[code] == 1
}

// Unsubscribe decrements the watcher count for code and returns the
// remaining count. Decrementing at zero is a no-op.
func (r *Registry) Unsubscribe(code string) uint {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watchers[code] > 0 {
		r.watchers[code]--
	}
	return r.watchers[code]
}

// WatcherCount returns the current watcher count for code.
func (r *Registry) WatcherCount(code string) uint {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.watchers[code]
}

// ActiveCodes returns every code with at least one watcher. Used to
// replay subscriptions after a reconnect.
func (r *Registry) ActiveCodes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes := make([]string, 0, len(r.watchers))
	for code, count := range r.watchers {
		if count > 0 {
			codes = append(codes, code)
		}
	}
	return codes
}
