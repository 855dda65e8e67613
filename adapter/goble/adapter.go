// Package goble implements the adapter port over go-ble LE scanning. It
// cannot toggle radio power (the OS owns that), so Enable and Disable report
// ErrUnsupported; discovery runs as bounded LE scan sessions that feed the
// event stream.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/btman/adapter"
	"github.com/srg/btman/internal/groutine"
	"github.com/srg/btman/internal/ringchan"
)

const eventBufferSize = 256

// DefaultDiscoveryDuration bounds a discovery session when no other
// duration is configured.
const DefaultDiscoveryDuration = 10 * time.Second

// Adapter is an LE-only adapter backend.
type Adapter struct {
	dev      ble.Device
	logger   *logrus.Logger
	events   *ringchan.RingChan[adapter.Event]
	duration time.Duration

	mu          sync.Mutex
	discovering bool
	closed      bool
	scanDone    chan struct{}
}

// New initializes the platform BLE device. Initialization failure means no
// usable adapter and wraps adapter.ErrNoAdapter.
func New(discoveryDuration time.Duration, logger *logrus.Logger) (*Adapter, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if discoveryDuration <= 0 {
		discoveryDuration = DefaultDiscoveryDuration
	}

	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", adapter.ErrNoAdapter, err)
	}

	return &Adapter{
		dev:      dev,
		logger:   logger,
		events:   ringchan.New[adapter.Event](eventBufferSize),
		duration: discoveryDuration,
	}, nil
}

// Address is unknown to go-ble; the backend returns an empty string.
func (a *Adapter) Address() string {
	return ""
}

// Powered reports true: holding a BLE device handle implies a usable radio.
func (a *Adapter) Powered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed
}

// Enable is not supported; the OS owns radio power.
func (a *Adapter) Enable() error {
	return adapter.ErrUnsupported
}

// Disable is not supported; the OS owns radio power.
func (a *Adapter) Disable() error {
	return adapter.ErrUnsupported
}

// Discovering reports whether a scan session is active.
func (a *Adapter) Discovering() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discovering
}

// StartDiscovery launches a bounded LE scan session. The discovering state
// changes arrive on the event stream, mirroring how a platform stack
// reports them.
func (a *Adapter) StartDiscovery(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("adapter is closed")
	}
	if a.discovering {
		a.mu.Unlock()
		return fmt.Errorf("discovery already active")
	}
	a.discovering = true
	done := make(chan struct{})
	a.scanDone = done
	a.mu.Unlock()

	a.events.Send(adapter.Event{Type: adapter.EventDiscoveringChanged, Discovering: true})

	groutine.Go(ctx, "le-scan", func(ctx context.Context) { a.scan(ctx, done) })
	return nil
}

// scan runs one discovery session. done is closed after the final event so
// Close can wait for the session to fully unwind before tearing down the
// event stream.
func (a *Adapter) scan(ctx context.Context, done chan struct{}) {
	defer close(done)

	scanCtx, cancel := context.WithTimeout(ctx, a.duration)
	defer cancel()

	err := a.dev.Scan(scanCtx, false, a.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		a.logger.WithError(err).Warn("LE scan ended with error")
	}

	a.mu.Lock()
	a.discovering = false
	a.mu.Unlock()

	a.events.Send(adapter.Event{Type: adapter.EventDiscoveringChanged, Discovering: false})
}

func (a *Adapter) handleAdvertisement(adv ble.Advertisement) {
	a.events.Send(adapter.Event{
		Type: adapter.EventDeviceFound,
		Device: adapter.DeviceInfo{
			Address: adv.Addr().String(),
			Name:    adv.LocalName(),
			RSSI:    adv.RSSI(),
			Seen:    time.Now(),
		},
	})
}

// Events returns the adapter notification stream.
func (a *Adapter) Events() <-chan adapter.Event {
	return a.events.C()
}

// Close stops any active scan, waits for the scan goroutine to unwind, and
// only then closes the event stream.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	discovering := a.discovering
	scanDone := a.scanDone
	a.mu.Unlock()

	var err error
	if discovering {
		err = a.dev.Stop()
	}
	// The scan goroutine sends its final discovering=false event after Scan
	// returns; the stream must stay open until then.
	if scanDone != nil {
		<-scanDone
	}
	a.events.Close()
	return err
}
