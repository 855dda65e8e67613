// Package devicecache maintains the settings layer's view of remote
// Bluetooth devices: entries discovered during scanning plus devices the
// platform reports as paired. It is fed by the event redirector and queried
// by the manager and the CLI.
package devicecache

import (
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/btman/adapter"
	"github.com/srg/btman/internal/ringchan"
)

// Device is a cached snapshot of a remote device. Values are immutable;
// updates replace the whole entry.
type Device struct {
	Address  string    `json:"address"`
	Name     string    `json:"name,omitempty"`
	Paired   bool      `json:"paired"`
	RSSI     int       `json:"rssi,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// DisplayName returns the device name, falling back to the address for
// devices that never advertised one.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Address
}

// EventType marks whether a cache event adds or removes a device.
type EventType int

const (
	EventAdded EventType = iota
	EventRemoved
)

// Event is emitted on the cache's event stream for watch-style consumers.
type Event struct {
	Type   EventType
	Device Device
}

const eventBufferSize = 100

// Cache is a concurrent device cache keyed by address.
type Cache struct {
	devices *hashmap.Map[string, Device]
	events  *ringchan.RingChan[Event]
	logger  *logrus.Logger
}

// New creates an empty device cache.
func New(logger *logrus.Logger) *Cache {
	if logger == nil {
		logger = logrus.New()
	}

	return &Cache{
		devices: hashmap.New[string, Device](),
		events:  ringchan.New[Event](eventBufferSize),
		logger:  logger,
	}
}

// Put inserts or refreshes the entry for info's address and reports whether
// the device is new to the cache.
func (c *Cache) Put(info adapter.DeviceInfo) (Device, bool) {
	seen := info.Seen
	if seen.IsZero() {
		seen = time.Now()
	}

	dev := Device{
		Address:  info.Address,
		Name:     info.Name,
		Paired:   info.Paired,
		RSSI:     info.RSSI,
		LastSeen: seen,
	}

	prev, existed := c.devices.Get(info.Address)
	if existed && dev.Name == "" {
		// The platform may omit the name on later sightings; keep the one
		// we already resolved.
		dev.Name = prev.Name
	}
	c.devices.Set(info.Address, dev)

	if existed {
		return dev, false
	}

	c.logger.WithFields(logrus.Fields{
		"device":  dev.DisplayName(),
		"address": dev.Address,
	}).Debug("Cached new device")
	c.events.Send(Event{Type: EventAdded, Device: dev})
	return dev, true
}

// Remove deletes the entry for the given address and reports whether it was
// present.
func (c *Cache) Remove(address string) (Device, bool) {
	dev, ok := c.devices.Get(address)
	if !ok {
		return Device{}, false
	}

	c.devices.Del(address)
	c.events.Send(Event{Type: EventRemoved, Device: dev})
	return dev, true
}

// Find returns the cached entry for the given address.
func (c *Cache) Find(address string) (Device, bool) {
	return c.devices.Get(address)
}

// Devices returns a snapshot of all cached devices.
func (c *Cache) Devices() []Device {
	devs := make([]Device, 0, c.devices.Len())
	c.devices.Range(func(_ string, d Device) bool {
		devs = append(devs, d)
		return true
	})
	return devs
}

// Len returns the number of cached devices.
func (c *Cache) Len() int {
	return c.devices.Len()
}

// OnAdapterEnabled is called by the manager when the adapter reaches a
// definitive on/off state. Turning the adapter off invalidates everything
// learned from scanning, so unpaired entries are dropped.
func (c *Cache) OnAdapterEnabled(enabled bool) {
	if !enabled {
		c.clearUnpaired()
	}
}

// OnScanningStateChanged is called by the manager on a genuine scanning
// state transition. A fresh scan starts from a clean slate of unpaired
// devices; stale entries from the previous scan are dropped.
func (c *Cache) OnScanningStateChanged(started bool) {
	if started {
		c.clearUnpaired()
	}
}

// Events returns the cache event stream. Slow consumers lose the oldest
// events rather than blocking the cache.
func (c *Cache) Events() <-chan Event {
	return c.events.C()
}

func (c *Cache) clearUnpaired() {
	var stale []Device
	c.devices.Range(func(_ string, d Device) bool {
		if !d.Paired {
			stale = append(stale, d)
		}
		return true
	})

	for _, d := range stale {
		c.devices.Del(d.Address)
		c.events.Send(Event{Type: EventRemoved, Device: d})
	}

	if len(stale) > 0 {
		c.logger.WithField("count", len(stale)).Debug("Cleared unpaired devices")
	}
}
