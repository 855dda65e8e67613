package testutils

import (
	"sync"

	"github.com/srg/btman/adapter"
	"github.com/srg/btman/notify"
)

// FakeAudioRouter scripts connected sinks and their playing states.
type FakeAudioRouter struct {
	mu      sync.Mutex
	sinks   []adapter.Sink
	playing map[string]bool
}

func NewFakeAudioRouter() *FakeAudioRouter {
	return &FakeAudioRouter{playing: make(map[string]bool)}
}

// AddSink registers a connected sink with the given playing state.
func (r *FakeAudioRouter) AddSink(address, name string, playing bool) *FakeAudioRouter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, adapter.Sink{Address: address, Name: name})
	r.playing[address] = playing
	return r
}

func (r *FakeAudioRouter) ConnectedSinks() []adapter.Sink {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]adapter.Sink, len(r.sinks))
	copy(out, r.sinks)
	return out
}

func (r *FakeAudioRouter) SinkPlaying(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing[address]
}

// FakeAlert records dismissal.
type FakeAlert struct {
	mu        sync.Mutex
	Title     string
	Message   string
	dismissed bool
}

func (a *FakeAlert) Dismiss() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dismissed = true
}

func (a *FakeAlert) Dismissed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dismissed
}

// FakeSession records alerts shown on it.
type FakeSession struct {
	mu     sync.Mutex
	alerts []*FakeAlert
}

func NewFakeSession() *FakeSession {
	return &FakeSession{}
}

func (s *FakeSession) ShowAlert(title, message string) notify.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert := &FakeAlert{Title: title, Message: message}
	s.alerts = append(s.alerts, alert)
	return alert
}

// Alerts returns the alerts shown so far.
func (s *FakeSession) Alerts() []*FakeAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*FakeAlert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// FakeNotifier records transient notifications.
type FakeNotifier struct {
	mu    sync.Mutex
	notes []string
}

func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

func (n *FakeNotifier) Notify(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, title+": "+message)
}

// Notes returns the recorded notifications.
func (n *FakeNotifier) Notes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.notes))
	copy(out, n.notes)
	return out
}
