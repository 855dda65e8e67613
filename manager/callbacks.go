package manager

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/btman/devicecache"
)

// Callback receives manager notifications. Callbacks are invoked
// synchronously from the goroutine that triggered the event; implementations
// must not block.
type Callback interface {
	OnScanningStateChanged(started bool)
	OnDeviceAdded(dev devicecache.Device)
	OnDeviceDeleted(dev devicecache.Device)
}

// callbackRegistry holds registered callbacks under a dedicated lock.
// Registration order is preserved so dispatch is deterministic, and dispatch
// iterates a snapshot so callbacks may unregister themselves (or others)
// mid-delivery.
type callbackRegistry struct {
	mu   sync.Mutex
	list *orderedmap.OrderedMap[Callback, struct{}]
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{
		list: orderedmap.New[Callback, struct{}](),
	}
}

// register adds cb and reports whether it was newly added. Registering the
// same callback twice is a no-op; events are never double-delivered.
func (r *callbackRegistry) register(cb Callback) bool {
	if cb == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, present := r.list.Get(cb); present {
		return false
	}
	r.list.Set(cb, struct{}{})
	return true
}

// unregister removes cb and reports whether it was present. A callback that
// unregisters during a dispatch receives nothing further, including the
// remainder of the dispatch in flight.
func (r *callbackRegistry) unregister(cb Callback) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, present := r.list.Delete(cb)
	return present
}

// contains reports whether cb is still registered. Dispatch re-checks
// membership per delivery so removal mid-dispatch takes effect immediately.
func (r *callbackRegistry) contains(cb Callback) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, present := r.list.Get(cb)
	return present
}

// snapshot returns the registered callbacks in registration order.
func (r *callbackRegistry) snapshot() []Callback {
	r.mu.Lock()
	defer r.mu.Unlock()

	cbs := make([]Callback, 0, r.list.Len())
	for pair := r.list.Oldest(); pair != nil; pair = pair.Next() {
		cbs = append(cbs, pair.Key)
	}
	return cbs
}
