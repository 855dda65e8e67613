package testutils

import (
	"context"
	"sync"

	"github.com/srg/btman/adapter"
)

// FakeAdapter is a scripted adapter.Adapter for tests. Build one with
// NewFakeAdapterBuilder; mutate scripted state through the Set* helpers and
// feed the event stream through Emit.
type FakeAdapter struct {
	mu          sync.Mutex
	powered     bool
	discovering bool
	address     string

	enableErr    error
	disableErr   error
	discoveryErr error

	enableCalls    int
	disableCalls   int
	discoveryCalls int

	events chan adapter.Event
	closed bool
}

// FakeAdapterBuilder scripts a FakeAdapter.
type FakeAdapterBuilder struct {
	fake *FakeAdapter
}

func NewFakeAdapterBuilder() *FakeAdapterBuilder {
	return &FakeAdapterBuilder{
		fake: &FakeAdapter{
			address: "00:11:22:33:44:55",
			events:  make(chan adapter.Event, 64),
		},
	}
}

func (b *FakeAdapterBuilder) WithAddress(address string) *FakeAdapterBuilder {
	b.fake.address = address
	return b
}

func (b *FakeAdapterBuilder) WithPowered(powered bool) *FakeAdapterBuilder {
	b.fake.powered = powered
	return b
}

func (b *FakeAdapterBuilder) WithDiscovering(discovering bool) *FakeAdapterBuilder {
	b.fake.discovering = discovering
	return b
}

func (b *FakeAdapterBuilder) WithEnableError(err error) *FakeAdapterBuilder {
	b.fake.enableErr = err
	return b
}

func (b *FakeAdapterBuilder) WithDisableError(err error) *FakeAdapterBuilder {
	b.fake.disableErr = err
	return b
}

func (b *FakeAdapterBuilder) WithDiscoveryError(err error) *FakeAdapterBuilder {
	b.fake.discoveryErr = err
	return b
}

func (b *FakeAdapterBuilder) Build() *FakeAdapter {
	return b.fake
}

func (f *FakeAdapter) Address() string {
	return f.address
}

func (f *FakeAdapter) Powered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.powered
}

func (f *FakeAdapter) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enableCalls++
	return f.enableErr
}

func (f *FakeAdapter) Disable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disableCalls++
	return f.disableErr
}

func (f *FakeAdapter) Discovering() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discovering
}

func (f *FakeAdapter) StartDiscovery(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discoveryCalls++
	return f.discoveryErr
}

func (f *FakeAdapter) Events() <-chan adapter.Event {
	return f.events
}

func (f *FakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

// Emit pushes an event onto the fake's stream.
func (f *FakeAdapter) Emit(ev adapter.Event) {
	f.events <- ev
}

// SetPowered mutates the scripted power state.
func (f *FakeAdapter) SetPowered(powered bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.powered = powered
}

// SetDiscovering mutates the scripted discovery state.
func (f *FakeAdapter) SetDiscovering(discovering bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovering = discovering
}

// EnableCalls returns how many times Enable was invoked.
func (f *FakeAdapter) EnableCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enableCalls
}

// DisableCalls returns how many times Disable was invoked.
func (f *FakeAdapter) DisableCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disableCalls
}

// DiscoveryCalls returns how many times StartDiscovery was invoked.
func (f *FakeAdapter) DiscoveryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discoveryCalls
}
