// Package redirector owns the adapter event stream: it stages platform
// notifications through an overwrite-oldest ring buffer and forwards them
// into the manager. The manager itself never blocks on the platform, and a
// burst of advertisements cannot stall the adapter backend.
package redirector

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"

	"github.com/srg/btman/adapter"
	"github.com/srg/btman/internal/groutine"
)

// Sink is the manager-side surface the redirector forwards into.
type Sink interface {
	OnAdapterPoweredChanged(powered bool)
	OnScanningStateChanged(started bool)
	OnDeviceFound(info adapter.DeviceInfo)
	OnDeviceGone(address string)
}

// Redirector lifecycle states (atomic).
const (
	stateNotRunning uint32 = iota
	stateRunning
	stateStopping
)

// MaxBufferSize guards against accidental misconfiguration.
const MaxBufferSize uint32 = 64 * 1024

// Metrics tracks redirector throughput. All fields are read and written
// atomically.
type Metrics struct {
	Forwarded   int64
	Overwritten int64
}

// Redirector forwards adapter events to a Sink. Start/Stop may be called
// from any goroutine; delivery to the sink is single-goroutine and in order.
type Redirector struct {
	source <-chan adapter.Event
	buffer mpmc.RichOverlappedRingBuffer[adapter.Event]
	sink   Sink
	logger *logrus.Logger

	stop chan struct{}
	done chan struct{}
	wake chan struct{}

	state   uint32
	metrics Metrics
}

// New creates a redirector reading from source and forwarding into sink.
func New(source <-chan adapter.Event, sink Sink, bufferSize uint32, logger *logrus.Logger) (*Redirector, error) {
	if source == nil {
		return nil, fmt.Errorf("event source cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	if bufferSize == 0 {
		return nil, fmt.Errorf("buffer size must be > 0")
	}
	if bufferSize > MaxBufferSize {
		return nil, fmt.Errorf("buffer size %d exceeds maximum %d", bufferSize, MaxBufferSize)
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Redirector{
		source: source,
		buffer: mpmc.NewOverlappedRingBuffer[adapter.Event](bufferSize),
		sink:   sink,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}, nil
}

// Start launches the collect and dispatch goroutines. It returns an error if
// the redirector is already running or still stopping.
func (r *Redirector) Start() error {
	if !atomic.CompareAndSwapUint32(&r.state, stateNotRunning, stateRunning) {
		switch atomic.LoadUint32(&r.state) {
		case stateRunning:
			return fmt.Errorf("redirector is already running")
		case stateStopping:
			return fmt.Errorf("redirector is stopping, wait for it to finish")
		default:
			return fmt.Errorf("redirector is in unknown state")
		}
	}

	// Fresh channels per start cycle so a restart never closes a closed
	// channel.
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	groutine.Go(context.Background(), "redirector-collect", func(context.Context) { r.collect() })
	groutine.Go(context.Background(), "redirector-dispatch", func(context.Context) { r.dispatch() })

	return nil
}

// Stop halts forwarding and waits for the dispatch goroutine to drain.
// Stopping an already stopped redirector is a no-op.
func (r *Redirector) Stop() error {
	if atomic.CompareAndSwapUint32(&r.state, stateRunning, stateStopping) {
		close(r.stop)
	} else if atomic.LoadUint32(&r.state) == stateNotRunning {
		return nil
	}

	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("redirector failed to stop within 5s")
	}

	atomic.StoreUint32(&r.state, stateNotRunning)
	return nil
}

// GetMetrics returns a snapshot of the throughput counters.
func (r *Redirector) GetMetrics() Metrics {
	return Metrics{
		Forwarded:   atomic.LoadInt64(&r.metrics.Forwarded),
		Overwritten: atomic.LoadInt64(&r.metrics.Overwritten),
	}
}

// collect moves events from the source channel into the ring buffer and
// wakes the dispatcher. The ring buffer drops the oldest staged event on
// overflow instead of blocking the platform backend.
func (r *Redirector) collect() {
	for {
		select {
		case <-r.stop:
			return
		case ev, ok := <-r.source:
			if !ok {
				return // adapter closed its stream
			}
			overwrites, err := r.buffer.EnqueueM(ev)
			if err != nil {
				r.logger.WithError(err).Error("Failed to stage adapter event")
				continue
			}
			atomic.AddInt64(&r.metrics.Overwritten, int64(overwrites))
			r.notifyDispatcher()
		}
	}
}

func (r *Redirector) notifyDispatcher() {
	select {
	case r.wake <- struct{}{}:
	default: // dispatcher already signalled
	}
}

// dispatch drains the ring buffer and forwards each event to the sink.
func (r *Redirector) dispatch() {
	defer close(r.done)

	for {
		select {
		case <-r.stop:
			r.drain()
			return
		case <-r.wake:
			r.drain()
		}
	}
}

func (r *Redirector) drain() {
	for !r.buffer.IsEmpty() {
		ev, err := r.buffer.Dequeue()
		if err != nil {
			return
		}
		r.forward(ev)
		atomic.AddInt64(&r.metrics.Forwarded, 1)
	}
}

func (r *Redirector) forward(ev adapter.Event) {
	switch ev.Type {
	case adapter.EventPoweredChanged:
		r.sink.OnAdapterPoweredChanged(ev.Powered)
	case adapter.EventDiscoveringChanged:
		r.sink.OnScanningStateChanged(ev.Discovering)
	case adapter.EventDeviceFound:
		r.sink.OnDeviceFound(ev.Device)
	case adapter.EventDeviceGone:
		r.sink.OnDeviceGone(ev.Device.Address)
	default:
		r.logger.WithField("type", ev.Type).Warn("Unrecognized adapter event")
	}
}
