// Package adapter defines the interface between the settings manager and a
// platform Bluetooth stack. Concrete backends live in the bluez and goble
// subpackages.
package adapter

import (
	"context"
	"errors"
	"time"
)

// Backend errors
var (
	// ErrNoAdapter indicates the platform reported no Bluetooth adapter.
	// Initialization against such a platform is a terminal failure; callers
	// should not retry.
	ErrNoAdapter = errors.New("no bluetooth adapter available")

	// ErrUnsupported indicates the backend cannot perform the requested
	// operation (e.g. power control on an LE-only backend).
	ErrUnsupported = errors.New("operation not supported by adapter backend")
)

// EventType identifies the kind of adapter event.
type EventType int

const (
	// EventPoweredChanged reports an adapter power state transition.
	EventPoweredChanged EventType = iota
	// EventDiscoveringChanged reports a discovery start or stop.
	EventDiscoveringChanged
	// EventDeviceFound reports a discovered or updated remote device.
	EventDeviceFound
	// EventDeviceGone reports a remote device removed by the platform.
	EventDeviceGone
)

// DeviceInfo carries the platform's view of a remote device.
type DeviceInfo struct {
	Address string    `json:"address"`
	Name    string    `json:"name,omitempty"`
	Paired  bool      `json:"paired"`
	RSSI    int       `json:"rssi,omitempty"`
	Seen    time.Time `json:"seen"`
}

// Event is a single adapter notification delivered on the event stream.
// Powered is meaningful for EventPoweredChanged, Discovering for
// EventDiscoveringChanged, and Device for the device events.
type Event struct {
	Type        EventType
	Powered     bool
	Discovering bool
	Device      DeviceInfo
}

// Adapter mirrors the platform Bluetooth adapter surface the settings layer
// needs: state queries, power commands, and discovery. All calls are
// synchronous; Events exposes the platform's asynchronous notifications.
type Adapter interface {
	// Address returns the adapter's own Bluetooth address, if known.
	Address() string

	// Powered reports whether the adapter radio is currently enabled.
	Powered() bool

	// Enable requests the adapter be powered on. A non-nil error means the
	// platform rejected the command; the adapter state is unchanged.
	Enable() error

	// Disable requests the adapter be powered off.
	Disable() error

	// Discovering reports whether device discovery is currently active.
	Discovering() bool

	// StartDiscovery asks the platform to begin device discovery. The
	// context bounds the request itself, not the discovery session.
	StartDiscovery(ctx context.Context) error

	// Events returns the adapter notification stream. The channel is closed
	// when the adapter is closed.
	Events() <-chan Event

	// Close releases the platform handle and closes the event stream.
	Close() error
}

// Sink is a connected audio output device.
type Sink struct {
	Address string
	Name    string
}

// AudioRouter answers queries about connected audio sinks. The manager uses
// it only to suppress unforced discovery while music is playing; it performs
// no routing.
type AudioRouter interface {
	// ConnectedSinks returns the currently connected audio sinks.
	ConnectedSinks() []Sink

	// SinkPlaying reports whether the sink at the given address is in the
	// playing state.
	SinkPlaying(address string) bool
}
