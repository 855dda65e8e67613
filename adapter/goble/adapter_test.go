package goble_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/btman/adapter"
	"github.com/srg/btman/adapter/goble"
	"github.com/srg/btman/internal/testutils"
)

// stubBLEDevice implements ble.Device. Scan blocks until the context expires
// or Stop is called, then lingers for teardownDelay before returning so tests
// can exercise the shutdown window.
type stubBLEDevice struct {
	adv           ble.Advertisement
	teardownDelay time.Duration

	startOnce sync.Once
	started   chan struct{}
	stopOnce  sync.Once
	stopped   chan struct{}
}

func newStubBLEDevice() *stubBLEDevice {
	return &stubBLEDevice{
		started: make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (d *stubBLEDevice) Scan(ctx context.Context, _ bool, h ble.AdvHandler) error {
	d.startOnce.Do(func() { close(d.started) })
	if d.adv != nil {
		h(d.adv)
	}
	select {
	case <-ctx.Done():
	case <-d.stopped:
	}
	time.Sleep(d.teardownDelay)
	return ctx.Err()
}

func (d *stubBLEDevice) Stop() error {
	d.stopOnce.Do(func() { close(d.stopped) })
	return nil
}

func (d *stubBLEDevice) AddService(svc *ble.Service) error     { return nil }
func (d *stubBLEDevice) RemoveAllServices() error              { return nil }
func (d *stubBLEDevice) SetServices(svcs []*ble.Service) error { return nil }
func (d *stubBLEDevice) Advertise(ctx context.Context, adv ble.Advertisement) error {
	return nil
}
func (d *stubBLEDevice) AdvertiseNameAndServices(ctx context.Context, name string, ss ...ble.UUID) error {
	return nil
}
func (d *stubBLEDevice) AdvertiseIBeacon(ctx context.Context, u ble.UUID, major, minor uint16, pwr int8) error {
	return nil
}
func (d *stubBLEDevice) AdvertiseIBeaconData(ctx context.Context, b []byte) error { return nil }
func (d *stubBLEDevice) AdvertiseMfgData(ctx context.Context, id uint16, b []byte) error {
	return nil
}
func (d *stubBLEDevice) AdvertiseServiceData16(ctx context.Context, id uint16, b []byte) error {
	return nil
}
func (d *stubBLEDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	return nil, nil
}

// stubAdvertisement implements ble.Advertisement with fixed values.
type stubAdvertisement struct {
	addr string
	name string
	rssi int
}

func (a *stubAdvertisement) LocalName() string              { return a.name }
func (a *stubAdvertisement) ManufacturerData() []byte       { return nil }
func (a *stubAdvertisement) ServiceData() []ble.ServiceData { return nil }
func (a *stubAdvertisement) Services() []ble.UUID           { return nil }
func (a *stubAdvertisement) OverflowService() []ble.UUID    { return nil }
func (a *stubAdvertisement) TxPowerLevel() int              { return 0 }
func (a *stubAdvertisement) Connectable() bool              { return true }
func (a *stubAdvertisement) SolicitedService() []ble.UUID   { return nil }
func (a *stubAdvertisement) RSSI() int                      { return a.rssi }
func (a *stubAdvertisement) Addr() ble.Addr                 { return ble.NewAddr(a.addr) }

func withStubDevice(t *testing.T, dev ble.Device) {
	t.Helper()
	original := goble.DeviceFactory
	goble.DeviceFactory = func() (ble.Device, error) { return dev, nil }
	t.Cleanup(func() { goble.DeviceFactory = original })
}

func TestNew_FactoryFailure(t *testing.T) {
	original := goble.DeviceFactory
	goble.DeviceFactory = func() (ble.Device, error) { return nil, errors.New("no HCI socket") }
	t.Cleanup(func() { goble.DeviceFactory = original })

	_, err := goble.New(time.Second, testutils.NewTestHelper(t).Logger)
	assert.ErrorIs(t, err, adapter.ErrNoAdapter)
}

func TestPowerControl_Unsupported(t *testing.T) {
	withStubDevice(t, newStubBLEDevice())
	a, err := goble.New(time.Second, testutils.NewTestHelper(t).Logger)
	require.NoError(t, err)
	defer a.Close()

	assert.ErrorIs(t, a.Enable(), adapter.ErrUnsupported)
	assert.ErrorIs(t, a.Disable(), adapter.ErrUnsupported)
}

func TestStartDiscovery_EmitsSessionEvents(t *testing.T) {
	dev := newStubBLEDevice()
	dev.adv = &stubAdvertisement{addr: "AA:BB:CC:DD:EE:FF", name: "Beacon", rssi: -60}
	withStubDevice(t, dev)

	a, err := goble.New(50*time.Millisecond, testutils.NewTestHelper(t).Logger)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.StartDiscovery(context.Background()))

	var got []adapter.Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-a.Events():
			got = append(got, ev)
		case <-deadline:
			t.Fatal("discovery session did not finish")
		}
		if len(got) > 0 && got[len(got)-1].Type == adapter.EventDiscoveringChanged &&
			!got[len(got)-1].Discovering {
			break
		}
	}

	require.Len(t, got, 3)
	assert.Equal(t, adapter.EventDiscoveringChanged, got[0].Type)
	assert.True(t, got[0].Discovering)
	assert.Equal(t, adapter.EventDeviceFound, got[1].Type)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", got[1].Device.Address)
	assert.Equal(t, "Beacon", got[1].Device.Name)
	assert.Equal(t, -60, got[1].Device.RSSI)
	assert.False(t, got[2].Discovering)
	assert.False(t, a.Discovering(), "session over")
}

func TestStartDiscovery_RejectsConcurrentSession(t *testing.T) {
	withStubDevice(t, newStubBLEDevice())
	a, err := goble.New(time.Minute, testutils.NewTestHelper(t).Logger)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.StartDiscovery(context.Background()))
	assert.Error(t, a.StartDiscovery(context.Background()))
}

func TestClose_WaitsForScanTeardown(t *testing.T) {
	// The scan goroutine sends its final discovering=false event only after
	// ble.Device.Scan returns; Close must not tear down the event stream
	// before that.
	dev := newStubBLEDevice()
	dev.teardownDelay = 50 * time.Millisecond
	withStubDevice(t, dev)

	a, err := goble.New(time.Minute, testutils.NewTestHelper(t).Logger)
	require.NoError(t, err)

	require.NoError(t, a.StartDiscovery(context.Background()))
	<-dev.started

	assert.NotPanics(t, func() {
		require.NoError(t, a.Close())
	})

	// The stream holds the full session and is closed afterwards.
	var got []adapter.Event
	for ev := range a.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.True(t, got[0].Discovering)
	assert.False(t, got[1].Discovering)
}

func TestClose_Idempotent(t *testing.T) {
	withStubDevice(t, newStubBLEDevice())
	a, err := goble.New(time.Second, testutils.NewTestHelper(t).Logger)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		require.NoError(t, a.Close())
		require.NoError(t, a.Close())
	})

	assert.Error(t, a.StartDiscovery(context.Background()), "closed adapter rejects discovery")
}
