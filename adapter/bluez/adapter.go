// Package bluez implements the adapter port over the BlueZ D-Bus API on the
// system bus.
package bluez

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	dbus "github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/srg/btman/adapter"
	"github.com/srg/btman/internal/groutine"
	"github.com/srg/btman/internal/ringchan"
)

const (
	bluezService     = "org.bluez"
	adapterIface     = "org.bluez.Adapter1"
	deviceIface      = "org.bluez.Device1"
	mediaPlayerIface = "org.bluez.MediaPlayer1"
	objManagerIface  = "org.freedesktop.DBus.ObjectManager"
	propsIface       = "org.freedesktop.DBus.Properties"
)

const eventBufferSize = 256

// Adapter drives the first org.bluez.Adapter1 object found on the system
// bus and translates BlueZ signals into adapter events.
type Adapter struct {
	bus     *dbus.Conn
	path    dbus.ObjectPath
	obj     dbus.BusObject
	address string
	logger  *logrus.Logger

	events   *ringchan.RingChan[adapter.Event]
	sigCh    chan *dbus.Signal
	done     chan struct{}
	loopDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New connects to the system bus and binds the first Bluetooth adapter. It
// fails with adapter.ErrNoAdapter when BlueZ exposes none.
func New(logger *logrus.Logger) (*Adapter, error) {
	if logger == nil {
		logger = logrus.New()
	}

	bus, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect system bus: %w", err)
	}

	objects, err := managedObjects(bus)
	if err != nil {
		bus.Close()
		return nil, err
	}

	var path dbus.ObjectPath
	for p, ifaces := range objects {
		if _, ok := ifaces[adapterIface]; ok {
			path = p
			break
		}
	}
	if path == "" {
		bus.Close()
		return nil, adapter.ErrNoAdapter
	}

	a := &Adapter{
		bus:    bus,
		path:   path,
		obj:    bus.Object(bluezService, path),
		logger: logger,
		events:   ringchan.New[adapter.Event](eventBufferSize),
		sigCh:    make(chan *dbus.Signal, 64),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}

	if v, err := a.obj.GetProperty(adapterIface + ".Address"); err == nil {
		a.address, _ = v.Value().(string)
	}

	if err := a.watchSignals(); err != nil {
		bus.Close()
		return nil, err
	}

	a.seedDevices(objects)

	groutine.Go(context.Background(), "bluez-signal-loop", func(context.Context) { a.signalLoop() })

	logger.WithFields(logrus.Fields{
		"path":    string(path),
		"address": a.address,
	}).Info("Bound BlueZ adapter")

	return a, nil
}

// Address returns the adapter's Bluetooth address.
func (a *Adapter) Address() string {
	return a.address
}

// Powered reports the Adapter1 Powered property.
func (a *Adapter) Powered() bool {
	v, err := a.obj.GetProperty(adapterIface + ".Powered")
	if err != nil {
		a.logger.WithError(err).Debug("Failed to read Powered property")
		return false
	}
	powered, _ := v.Value().(bool)
	return powered
}

// Enable powers the adapter on.
func (a *Adapter) Enable() error {
	return a.setPowered(true)
}

// Disable powers the adapter off.
func (a *Adapter) Disable() error {
	return a.setPowered(false)
}

func (a *Adapter) setPowered(powered bool) error {
	if err := a.obj.SetProperty(adapterIface+".Powered", dbus.MakeVariant(powered)); err != nil {
		return fmt.Errorf("failed to set Powered=%v: %w", powered, err)
	}
	return nil
}

// Discovering reports the Adapter1 Discovering property.
func (a *Adapter) Discovering() bool {
	v, err := a.obj.GetProperty(adapterIface + ".Discovering")
	if err != nil {
		a.logger.WithError(err).Debug("Failed to read Discovering property")
		return false
	}
	discovering, _ := v.Value().(bool)
	return discovering
}

// StartDiscovery asks BlueZ to begin discovery. The discovering state change
// arrives asynchronously through the event stream.
func (a *Adapter) StartDiscovery(ctx context.Context) error {
	if call := a.obj.CallWithContext(ctx, adapterIface+".StartDiscovery", 0); call.Err != nil {
		return fmt.Errorf("StartDiscovery: %w", call.Err)
	}
	return nil
}

// StopDiscovery asks BlueZ to end discovery.
func (a *Adapter) StopDiscovery(ctx context.Context) error {
	if call := a.obj.CallWithContext(ctx, adapterIface+".StopDiscovery", 0); call.Err != nil {
		return fmt.Errorf("StopDiscovery: %w", call.Err)
	}
	return nil
}

// Events returns the adapter notification stream.
func (a *Adapter) Events() <-chan adapter.Event {
	return a.events.C()
}

// Close stops any discovery this adapter left running, removes the signal
// subscriptions, joins the signal loop, and only then closes the bus
// connection and the event stream.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		if a.Discovering() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := a.StopDiscovery(ctx); err != nil {
				a.logger.WithError(err).Debug("Failed to stop discovery on close")
			}
			cancel()
		}

		_ = a.bus.RemoveMatchSignal(
			dbus.WithMatchInterface(propsIface),
			dbus.WithMatchMember("PropertiesChanged"),
		)
		_ = a.bus.RemoveMatchSignal(
			dbus.WithMatchInterface(objManagerIface),
		)
		a.bus.RemoveSignal(a.sigCh)

		a.stopSignalLoop()

		a.closeErr = a.bus.Close()
		a.events.Close()
	})
	return a.closeErr
}

// stopSignalLoop asks signalLoop to exit and waits until it has. A signal
// in flight may still produce an event send, so the event stream must stay
// open until the loop has returned.
func (a *Adapter) stopSignalLoop() {
	close(a.done)
	<-a.loopDone
}

func (a *Adapter) watchSignals() error {
	a.bus.Signal(a.sigCh)

	if err := a.bus.AddMatchSignal(
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return fmt.Errorf("AddMatchSignal(PropertiesChanged): %w", err)
	}

	if err := a.bus.AddMatchSignal(
		dbus.WithMatchInterface(objManagerIface),
	); err != nil {
		return fmt.Errorf("AddMatchSignal(ObjectManager): %w", err)
	}

	return nil
}

// seedDevices primes the event stream with the devices BlueZ already knows
// about, so the cache starts out with paired devices present.
func (a *Adapter) seedDevices(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) {
	for path, ifaces := range objects {
		props, ok := ifaces[deviceIface]
		if !ok {
			continue
		}
		a.events.Send(adapter.Event{
			Type:   adapter.EventDeviceFound,
			Device: deviceInfo(path, props),
		})
	}
}

func (a *Adapter) signalLoop() {
	defer close(a.loopDone)

	for {
		select {
		case <-a.done:
			return
		case sig, ok := <-a.sigCh:
			if !ok {
				return
			}
			a.handleSignal(sig)
		}
	}
}

func (a *Adapter) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case propsIface + ".PropertiesChanged":
		if len(sig.Body) < 2 {
			return
		}
		iface, _ := sig.Body[0].(string)
		changed, _ := sig.Body[1].(map[string]dbus.Variant)
		if changed == nil {
			return
		}
		switch iface {
		case adapterIface:
			a.handleAdapterChanged(changed)
		case deviceIface:
			a.handleDeviceChanged(sig.Path, changed)
		}

	case objManagerIface + ".InterfacesAdded":
		if len(sig.Body) < 2 {
			return
		}
		path, _ := sig.Body[0].(dbus.ObjectPath)
		ifaces, _ := sig.Body[1].(map[string]map[string]dbus.Variant)
		props, ok := ifaces[deviceIface]
		if !ok {
			return
		}
		a.events.Send(adapter.Event{
			Type:   adapter.EventDeviceFound,
			Device: deviceInfo(path, props),
		})

	case objManagerIface + ".InterfacesRemoved":
		if len(sig.Body) < 2 {
			return
		}
		path, _ := sig.Body[0].(dbus.ObjectPath)
		ifaces, _ := sig.Body[1].([]string)
		for _, iface := range ifaces {
			if iface == deviceIface {
				a.events.Send(adapter.Event{
					Type:   adapter.EventDeviceGone,
					Device: adapter.DeviceInfo{Address: addressFromPath(path)},
				})
				return
			}
		}
	}
}

func (a *Adapter) handleAdapterChanged(changed map[string]dbus.Variant) {
	if v, ok := changed["Powered"]; ok {
		powered, _ := v.Value().(bool)
		a.events.Send(adapter.Event{Type: adapter.EventPoweredChanged, Powered: powered})
	}
	if v, ok := changed["Discovering"]; ok {
		discovering, _ := v.Value().(bool)
		a.events.Send(adapter.Event{Type: adapter.EventDiscoveringChanged, Discovering: discovering})
	}
}

func (a *Adapter) handleDeviceChanged(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	// A property change is a fresh sighting; re-read the full device so the
	// event carries consistent fields.
	props, err := deviceProperties(a.bus, path)
	if err != nil {
		a.logger.WithError(err).WithField("path", string(path)).
			Debug("Failed to read changed device")
		return
	}
	a.events.Send(adapter.Event{
		Type:   adapter.EventDeviceFound,
		Device: deviceInfo(path, props),
	})
}

func managedObjects(bus *dbus.Conn) (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	obj := bus.Object(bluezService, dbus.ObjectPath("/"))
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if call := obj.Call(objManagerIface+".GetManagedObjects", 0); call.Err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", call.Err)
	} else if err := call.Store(&objects); err != nil {
		return nil, fmt.Errorf("decode GetManagedObjects: %w", err)
	}
	return objects, nil
}

func deviceProperties(bus *dbus.Conn, path dbus.ObjectPath) (map[string]dbus.Variant, error) {
	obj := bus.Object(bluezService, path)
	var props map[string]dbus.Variant
	if call := obj.Call(propsIface+".GetAll", 0, deviceIface); call.Err != nil {
		return nil, fmt.Errorf("Properties.GetAll: %w", call.Err)
	} else if err := call.Store(&props); err != nil {
		return nil, fmt.Errorf("decode Properties.GetAll: %w", err)
	}
	return props, nil
}

func deviceInfo(path dbus.ObjectPath, props map[string]dbus.Variant) adapter.DeviceInfo {
	info := adapter.DeviceInfo{
		Address: addressFromPath(path),
		Seen:    time.Now(),
	}

	if v, ok := props["Address"]; ok {
		if addr, ok := v.Value().(string); ok && addr != "" {
			info.Address = addr
		}
	}
	if v, ok := props["Name"]; ok {
		info.Name, _ = v.Value().(string)
	}
	if v, ok := props["Alias"]; ok && info.Name == "" {
		info.Name, _ = v.Value().(string)
	}
	if v, ok := props["Paired"]; ok {
		info.Paired, _ = v.Value().(bool)
	}
	if v, ok := props["RSSI"]; ok {
		if rssi, ok := v.Value().(int16); ok {
			info.RSSI = int(rssi)
		}
	}

	return info
}

// addressFromPath recovers the device address from a BlueZ object path of
// the form .../dev_XX_XX_XX_XX_XX_XX.
func addressFromPath(p dbus.ObjectPath) string {
	s := string(p)
	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return ""
	}
	return strings.ReplaceAll(s[idx+5:], "_", ":")
}
