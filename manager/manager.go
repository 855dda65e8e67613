// Package manager is the single access point for Bluetooth settings state
// and commands. It tracks the adapter power state, throttles and triggers
// device discovery, fans adapter and device events out to registered
// callbacks, and surfaces error alerts on the foreground session with a
// transient fallback.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/btman/adapter"
	"github.com/srg/btman/devicecache"
	"github.com/srg/btman/internal/prefs"
	"github.com/srg/btman/notify"
)

// DefaultScanCooldown is the minimum interval between unforced discovery
// starts.
const DefaultScanCooldown = 5 * time.Minute

// Options configures a Manager. Adapter is required; everything else has a
// usable default.
type Options struct {
	Adapter adapter.Adapter

	// Audio, when set, suppresses unforced discovery while any connected
	// sink is playing.
	Audio adapter.AudioRouter

	// Cache is the device cache collaborator; created if nil.
	Cache *devicecache.Cache

	// Prefs is the preference store handle exposed to collaborators.
	Prefs *prefs.Store

	// Notifier is the transient error surface used when no foreground
	// session is attached. Defaults to a log-backed notifier.
	Notifier notify.Notifier

	Logger *logrus.Logger

	// ScanCooldown overrides DefaultScanCooldown.
	ScanCooldown time.Duration

	// Clock overrides the time source (tests).
	Clock func() time.Time
}

// Manager mediates access to the platform Bluetooth adapter. Construct it
// once at the composition root and share the instance; all methods are safe
// for concurrent use.
type Manager struct {
	adapter  adapter.Adapter
	audio    adapter.AudioRouter
	cache    *devicecache.Cache
	prefs    *prefs.Store
	notifier notify.Notifier
	logger   *logrus.Logger
	cooldown time.Duration
	now      func() time.Time

	mu           sync.Mutex
	started      bool
	state        State
	lastScan     time.Time
	session      notify.Session
	pendingAlert notify.Alert

	callbacks *callbackRegistry
}

// New creates a Manager. It fails with adapter.ErrNoAdapter when no adapter
// is supplied; there is no point retrying against a platform without one.
func New(opts Options) (*Manager, error) {
	if opts.Adapter == nil {
		return nil, adapter.ErrNoAdapter
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	cache := opts.Cache
	if cache == nil {
		cache = devicecache.New(logger)
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = &notify.LogNotifier{Logger: logger}
	}

	cooldown := opts.ScanCooldown
	if cooldown <= 0 {
		cooldown = DefaultScanCooldown
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Manager{
		adapter:   opts.Adapter,
		audio:     opts.Audio,
		cache:     cache,
		prefs:     opts.Prefs,
		notifier:  notifier,
		logger:    logger,
		cooldown:  cooldown,
		now:       now,
		state:     StateUnknown,
		callbacks: newCallbackRegistry(),
	}, nil
}

// Start performs the one-time initialization: it resolves the initial
// adapter state. Repeated calls after a successful start are no-ops.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	m.started = true

	m.syncStateLocked()
	m.logger.WithFields(logrus.Fields{
		"address": m.adapter.Address(),
		"state":   m.state,
	}).Info("Bluetooth manager started")

	return nil
}

// Adapter returns the platform adapter handle.
func (m *Manager) Adapter() adapter.Adapter {
	return m.adapter
}

// Cache returns the device cache collaborator.
func (m *Manager) Cache() *devicecache.Cache {
	return m.cache
}

// Prefs returns the shared preference store handle, which may be nil when
// the composition root did not configure one.
func (m *Manager) Prefs() *prefs.Store {
	return m.prefs
}

// ForegroundSession returns the currently attached foreground session.
func (m *Manager) ForegroundSession() notify.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// SetForegroundSession dismisses any pending error alert, then records the
// new foreground session. Passing nil clears it.
func (m *Manager) SetForegroundSession(s notify.Session) {
	m.mu.Lock()
	pending := m.pendingAlert
	m.pendingAlert = nil
	m.session = s
	m.mu.Unlock()

	if pending != nil {
		pending.Dismiss()
	}
}

// RegisterCallback adds cb to the callback registry. Registering the same
// callback twice is a no-op.
func (m *Manager) RegisterCallback(cb Callback) {
	if !m.callbacks.register(cb) {
		m.logger.Debug("Callback already registered or nil; ignoring")
	}
}

// UnregisterCallback removes cb from the registry. A callback unregistered
// during dispatch receives no further events.
func (m *Manager) UnregisterCallback(cb Callback) {
	m.callbacks.unregister(cb)
}

// StartScanning requests device discovery.
//
// If discovery is already active it only notifies callbacks that scanning is
// in progress; the device cache is deliberately not told, so its unpaired
// list survives (a genuine transition would clear it).
//
// An unforced request is skipped inside the cooldown window since the last
// successful start, and while any connected audio sink is playing. A
// rejected discovery request is silent: no error surfaces and the cooldown
// timestamp is not updated.
func (m *Manager) StartScanning(ctx context.Context, force bool) {
	if m.adapter.Discovering() {
		m.dispatchScanningStateChanged(true)
		return
	}

	if !force {
		m.mu.Lock()
		inCooldown := m.now().Before(m.lastScan.Add(m.cooldown))
		m.mu.Unlock()
		if inCooldown {
			m.logger.Debug("Scan request inside cooldown window; skipped")
			return
		}

		if m.audioPlaying() {
			m.logger.Debug("Audio sink playing; scan skipped")
			return
		}
	}

	if err := m.adapter.StartDiscovery(ctx); err != nil {
		m.logger.WithError(err).Debug("Discovery start rejected by platform")
		return
	}

	m.mu.Lock()
	m.lastScan = m.now()
	m.mu.Unlock()
}

func (m *Manager) audioPlaying() bool {
	if m.audio == nil {
		return false
	}
	for _, sink := range m.audio.ConnectedSinks() {
		if m.audio.SinkPlaying(sink.Address) {
			return true
		}
	}
	return false
}

// State returns the cached adapter state, lazily re-syncing from the
// platform when the cache holds the unknown sentinel.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUnknown {
		m.syncStateLocked()
	}
	return m.state
}

// SetEnabled issues an enable or disable command to the platform adapter.
// On acceptance the state optimistically enters the matching transition; on
// rejection it is re-synced from a fresh platform query instead. No error is
// returned to the caller either way.
func (m *Manager) SetEnabled(enabled bool) {
	var err error
	if enabled {
		err = m.adapter.Enable()
	} else {
		err = m.adapter.Disable()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.logger.WithError(err).WithField("enabled", enabled).
			Debug("Platform rejected power command; re-syncing state")
		m.syncStateLocked()
		return
	}

	m.setStateLocked(transitionTarget(enabled))
}

// OnAdapterPoweredChanged is invoked by the event redirector when the
// platform reports a settled power transition.
func (m *Manager) OnAdapterPoweredChanged(powered bool) {
	m.mu.Lock()
	m.setStateLocked(definitiveFor(powered))
	m.mu.Unlock()
}

// OnScanningStateChanged is invoked by the event redirector on a genuine
// discovery state transition: the device cache is notified first, then
// callbacks are dispatched.
func (m *Manager) OnScanningStateChanged(started bool) {
	m.cache.OnScanningStateChanged(started)
	m.dispatchScanningStateChanged(started)
}

// OnDeviceFound is invoked by the event redirector for a discovered or
// refreshed device. Callbacks see only genuinely new devices.
func (m *Manager) OnDeviceFound(info adapter.DeviceInfo) {
	dev, added := m.cache.Put(info)
	if !added {
		return
	}
	for _, cb := range m.callbacks.snapshot() {
		if m.callbacks.contains(cb) {
			cb.OnDeviceAdded(dev)
		}
	}
}

// OnDeviceGone is invoked by the event redirector when the platform removes
// a device.
func (m *Manager) OnDeviceGone(address string) {
	dev, removed := m.cache.Remove(address)
	if !removed {
		return
	}
	for _, cb := range m.callbacks.snapshot() {
		if m.callbacks.contains(cb) {
			cb.OnDeviceDeleted(dev)
		}
	}
}

// ShowError surfaces a device-related error. The message is formed from
// format and the cached device's display name. With a foreground session
// attached the alert is modal and held pending until dismissed or the
// session changes; otherwise the transient notifier is used. Unknown devices
// are ignored.
func (m *Manager) ShowError(address, title, format string) {
	dev, ok := m.cache.Find(address)
	if !ok {
		return
	}
	message := fmt.Sprintf(format, dev.DisplayName())

	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		m.notifier.Notify(title, message)
		return
	}

	alert := session.ShowAlert(title, message)

	m.mu.Lock()
	m.pendingAlert = alert
	m.mu.Unlock()
}

// syncStateLocked resolves the state from a fresh platform query.
func (m *Manager) syncStateLocked() {
	m.setStateLocked(definitiveFor(m.adapter.Powered()))
}

// setStateLocked records the new state and, on a definitive on/off value,
// forwards the enabled flag to the device cache.
func (m *Manager) setStateLocked(s State) {
	m.state = s
	if s.Definitive() {
		m.cache.OnAdapterEnabled(s == StateOn)
	}
}

func (m *Manager) dispatchScanningStateChanged(started bool) {
	for _, cb := range m.callbacks.snapshot() {
		if m.callbacks.contains(cb) {
			cb.OnScanningStateChanged(started)
		}
	}
}
