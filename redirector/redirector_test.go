package redirector_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/btman/adapter"
	"github.com/srg/btman/internal/testutils"
	"github.com/srg/btman/redirector"
)

// recordingSink records everything the redirector forwards.
type recordingSink struct {
	mu       sync.Mutex
	powered  []bool
	scanning []bool
	found    []adapter.DeviceInfo
	gone     []string
}

func (s *recordingSink) OnAdapterPoweredChanged(powered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powered = append(s.powered, powered)
}

func (s *recordingSink) OnScanningStateChanged(started bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanning = append(s.scanning, started)
}

func (s *recordingSink) OnDeviceFound(info adapter.DeviceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.found = append(s.found, info)
}

func (s *recordingSink) OnDeviceGone(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gone = append(s.gone, address)
}

func (s *recordingSink) counts() (int, int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.powered), len(s.scanning), len(s.found), len(s.gone)
}

func TestNew_Validation(t *testing.T) {
	logger := testutils.NewTestHelper(t).Logger
	source := make(chan adapter.Event)
	sink := &recordingSink{}

	tests := []struct {
		name   string
		source <-chan adapter.Event
		sink   redirector.Sink
		size   uint32
	}{
		{name: "nil source", source: nil, sink: sink, size: 16},
		{name: "nil sink", source: source, sink: nil, size: 16},
		{name: "zero buffer", source: source, sink: sink, size: 0},
		{name: "oversized buffer", source: source, sink: sink, size: redirector.MaxBufferSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := redirector.New(tt.source, tt.sink, tt.size, logger)
			assert.Error(t, err)
			assert.Nil(t, r)
		})
	}
}

func TestForwardsAllEventTypes(t *testing.T) {
	logger := testutils.NewTestHelper(t).Logger
	source := make(chan adapter.Event, 8)
	sink := &recordingSink{}

	r, err := redirector.New(source, sink, 16, logger)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	defer func() { require.NoError(t, r.Stop()) }()

	source <- adapter.Event{Type: adapter.EventPoweredChanged, Powered: true}
	source <- adapter.Event{Type: adapter.EventDiscoveringChanged, Discovering: true}
	source <- adapter.Event{Type: adapter.EventDeviceFound, Device: adapter.DeviceInfo{Address: "AA:BB:CC:DD:EE:FF", Name: "Headset"}}
	source <- adapter.Event{Type: adapter.EventDeviceGone, Device: adapter.DeviceInfo{Address: "AA:BB:CC:DD:EE:FF"}}

	require.Eventually(t, func() bool {
		p, s, f, g := sink.counts()
		return p == 1 && s == 1 && f == 1 && g == 1
	}, 2*time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []bool{true}, sink.powered)
	assert.Equal(t, []bool{true}, sink.scanning)
	assert.Equal(t, "Headset", sink.found[0].Name)
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF"}, sink.gone)

	metrics := r.GetMetrics()
	assert.Equal(t, int64(4), metrics.Forwarded)
}

func TestStart_RejectsDoubleStart(t *testing.T) {
	logger := testutils.NewTestHelper(t).Logger
	source := make(chan adapter.Event)
	sink := &recordingSink{}

	r, err := redirector.New(source, sink, 16, logger)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	defer func() { _ = r.Stop() }()

	assert.Error(t, r.Start())
}

func TestStop_IsIdempotent(t *testing.T) {
	logger := testutils.NewTestHelper(t).Logger
	source := make(chan adapter.Event)
	sink := &recordingSink{}

	r, err := redirector.New(source, sink, 16, logger)
	require.NoError(t, err)

	assert.NoError(t, r.Stop(), "stopping a never-started redirector is a no-op")

	require.NoError(t, r.Start())
	assert.NoError(t, r.Stop())
	assert.NoError(t, r.Stop())
}

func TestClosedSourceStopsCollecting(t *testing.T) {
	logger := testutils.NewTestHelper(t).Logger
	fake := testutils.NewFakeAdapterBuilder().Build()
	sink := &recordingSink{}

	r, err := redirector.New(fake.Events(), sink, 16, logger)
	require.NoError(t, err)
	require.NoError(t, r.Start())

	fake.Emit(adapter.Event{Type: adapter.EventPoweredChanged, Powered: false})
	require.NoError(t, fake.Close())

	require.Eventually(t, func() bool {
		p, _, _, _ := sink.counts()
		return p == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.NoError(t, r.Stop())
}
