package bluez

import (
	dbus "github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/srg/btman/adapter"
)

const statusPlaying = "playing"

// MediaRouter answers audio sink queries from the org.bluez.MediaPlayer1
// objects on the bus. It performs no routing; the manager only asks whether
// music is playing before starting an unforced scan.
type MediaRouter struct {
	bus    *dbus.Conn
	logger *logrus.Logger
}

// NewMediaRouter creates a router sharing the adapter's bus connection.
func NewMediaRouter(a *Adapter, logger *logrus.Logger) *MediaRouter {
	if logger == nil {
		logger = logrus.New()
	}
	return &MediaRouter{bus: a.bus, logger: logger}
}

// ConnectedSinks returns the devices currently exposing a media player.
func (r *MediaRouter) ConnectedSinks() []adapter.Sink {
	objects, err := managedObjects(r.bus)
	if err != nil {
		r.logger.WithError(err).Debug("Failed to enumerate media players")
		return nil
	}

	var sinks []adapter.Sink
	for path, ifaces := range objects {
		if _, ok := ifaces[mediaPlayerIface]; !ok {
			continue
		}
		sink := adapter.Sink{Address: addressFromPath(path)}
		if props, ok := ifaces[deviceIface]; ok {
			if v, ok := props["Name"]; ok {
				sink.Name, _ = v.Value().(string)
			}
		}
		sinks = append(sinks, sink)
	}
	return sinks
}

// SinkPlaying reports whether the media player of the device at the given
// address is in the playing state.
func (r *MediaRouter) SinkPlaying(address string) bool {
	objects, err := managedObjects(r.bus)
	if err != nil {
		r.logger.WithError(err).Debug("Failed to enumerate media players")
		return false
	}

	for path, ifaces := range objects {
		props, ok := ifaces[mediaPlayerIface]
		if !ok || addressFromPath(path) != address {
			continue
		}
		if v, ok := props["Status"]; ok {
			status, _ := v.Value().(string)
			return status == statusPlaying
		}
	}
	return false
}
