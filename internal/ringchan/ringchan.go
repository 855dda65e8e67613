// Package ringchan provides a bounded channel wrapper with overwrite-oldest
// semantics for event fan-out to slow or absent consumers.
package ringchan

// RingChan wraps a buffered channel so producers never block: when the
// buffer is full the oldest element is discarded. Readers consume through
// C() like a normal channel.
type RingChan[T any] struct {
	ch chan T
}

// New creates a RingChan with the given capacity.
func New[T any](capacity int) *RingChan[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChan[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel. Consumers can range over
// it until Close.
func (rc *RingChan[T]) C() <-chan T {
	return rc.ch
}

// Send inserts an item, discarding the oldest buffered element if the
// buffer is full. It reports whether an element was dropped.
func (rc *RingChan[T]) Send(v T) bool {
	dropped := false

	select {
	case rc.ch <- v:
	default:
		select {
		case <-rc.ch: // drop oldest
			dropped = true
		default:
		}
		rc.ch <- v
	}

	return dropped
}

// TrySend attempts a non-blocking insert and reports whether it succeeded.
func (rc *RingChan[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered elements.
func (rc *RingChan[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the buffer capacity.
func (rc *RingChan[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the underlying channel. Send after Close panics.
func (rc *RingChan[T]) Close() {
	close(rc.ch)
}
