package devicecache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/btman/adapter"
	"github.com/srg/btman/devicecache"
	"github.com/srg/btman/internal/testutils"
)

func newCache(t *testing.T) *devicecache.Cache {
	t.Helper()
	return devicecache.New(testutils.NewTestHelper(t).Logger)
}

func TestPut(t *testing.T) {
	c := newCache(t)

	dev, added := c.Put(adapter.DeviceInfo{Address: "AA:BB:CC:DD:EE:FF", Name: "Headset", RSSI: -40})
	require.True(t, added)
	assert.Equal(t, "Headset", dev.Name)
	assert.False(t, dev.LastSeen.IsZero())

	// Refresh: not a new device, fields updated.
	dev, added = c.Put(adapter.DeviceInfo{Address: "AA:BB:CC:DD:EE:FF", Name: "Headset", RSSI: -55})
	assert.False(t, added)
	assert.Equal(t, -55, dev.RSSI)
	assert.Equal(t, 1, c.Len())
}

func TestPut_KeepsResolvedName(t *testing.T) {
	c := newCache(t)

	c.Put(adapter.DeviceInfo{Address: "AA:BB:CC:DD:EE:FF", Name: "Headset"})
	dev, _ := c.Put(adapter.DeviceInfo{Address: "AA:BB:CC:DD:EE:FF"})

	assert.Equal(t, "Headset", dev.Name, "a sighting without a name must not erase the known one")
}

func TestFindAndRemove(t *testing.T) {
	c := newCache(t)
	c.Put(adapter.DeviceInfo{Address: "AA:BB:CC:DD:EE:FF", Name: "Headset"})

	dev, ok := c.Find("AA:BB:CC:DD:EE:FF")
	require.True(t, ok)
	assert.Equal(t, "Headset", dev.Name)

	removed, ok := c.Remove("AA:BB:CC:DD:EE:FF")
	require.True(t, ok)
	assert.Equal(t, "Headset", removed.Name)

	_, ok = c.Find("AA:BB:CC:DD:EE:FF")
	assert.False(t, ok)

	_, ok = c.Remove("AA:BB:CC:DD:EE:FF")
	assert.False(t, ok, "removing an absent device reports false")
}

func TestOnScanningStateChanged_ClearsUnpaired(t *testing.T) {
	c := newCache(t)
	c.Put(adapter.DeviceInfo{Address: "AA:00:00:00:00:01", Name: "Scanned"})
	c.Put(adapter.DeviceInfo{Address: "AA:00:00:00:00:02", Name: "Bonded", Paired: true})

	// Scan stop leaves the cache alone.
	c.OnScanningStateChanged(false)
	assert.Equal(t, 2, c.Len())

	// A genuine scan start drops unpaired leftovers from the previous scan.
	c.OnScanningStateChanged(true)
	_, unpaired := c.Find("AA:00:00:00:00:01")
	_, paired := c.Find("AA:00:00:00:00:02")
	assert.False(t, unpaired)
	assert.True(t, paired)
}

func TestOnAdapterEnabled(t *testing.T) {
	c := newCache(t)
	c.Put(adapter.DeviceInfo{Address: "AA:00:00:00:00:01", Name: "Scanned"})
	c.Put(adapter.DeviceInfo{Address: "AA:00:00:00:00:02", Name: "Bonded", Paired: true})

	c.OnAdapterEnabled(true)
	assert.Equal(t, 2, c.Len(), "enabling keeps everything")

	c.OnAdapterEnabled(false)
	assert.Equal(t, 1, c.Len(), "disabling drops unpaired entries")
}

func TestEvents(t *testing.T) {
	c := newCache(t)

	c.Put(adapter.DeviceInfo{Address: "AA:BB:CC:DD:EE:FF", Name: "Headset"})
	c.Put(adapter.DeviceInfo{Address: "AA:BB:CC:DD:EE:FF", Name: "Headset"}) // refresh, no event
	c.Remove("AA:BB:CC:DD:EE:FF")

	select {
	case ev := <-c.Events():
		assert.Equal(t, devicecache.EventAdded, ev.Type)
		assert.Equal(t, "Headset", ev.Device.Name)
	case <-time.After(time.Second):
		t.Fatal("expected an added event")
	}

	select {
	case ev := <-c.Events():
		assert.Equal(t, devicecache.EventRemoved, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a removed event")
	}
}

func TestDisplayName(t *testing.T) {
	named := devicecache.Device{Address: "AA:BB:CC:DD:EE:FF", Name: "Headset"}
	unnamed := devicecache.Device{Address: "AA:BB:CC:DD:EE:FF"}

	assert.Equal(t, "Headset", named.DisplayName())
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", unnamed.DisplayName())
}
