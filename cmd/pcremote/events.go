package main

import (
	"log/slog"
	"sync"
	"time"
)

// ============================================================================
// State Broadcasts
// ============================================================================
// Broadcasts describe things that already happened: a code was pressed, the
// mouse mode flipped, the audio device or volume changed. They are produced by
// the listener and the dispatcher and fanned out to observers (websocket hub,
// MQTT, desktop notifications). Observers never feed back into dispatch.
// ============================================================================

// StateBroadcast is a marker interface for every observable state change.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastCodePressed is emitted once per newly pressed code, not for repeats.
type BroadcastCodePressed struct {
	Code string    `json:"code"`
	At   time.Time `json:"-"`
}

// BroadcastCodeDispatched is emitted after every dispatch, including repeats.
type BroadcastCodeDispatched struct {
	Code      string         `json:"code"`
	Repeating bool           `json:"repeating"`
	Result    DispatchResult `json:"result"`
	At        time.Time      `json:"-"`
}

type BroadcastMouseModeChanged struct {
	On bool      `json:"on"`
	At time.Time `json:"-"`
}

type BroadcastDeviceChanged struct {
	Device Device    `json:"device"`
	At     time.Time `json:"-"`
}

type BroadcastVolumeChanged struct {
	Volume int       `json:"volume"`
	At     time.Time `json:"-"`
}

type BroadcastMuteToggled struct {
	At time.Time `json:"-"`
}

// BroadcastMediaRefreshed carries the cache after a periodic or requested refresh.
type BroadcastMediaRefreshed struct {
	Media MediaSnapshot `json:"media"`
	At    time.Time     `json:"-"`
}

type BroadcastListenerState struct {
	State ListenerState `json:"state"`
	Port  string        `json:"port,omitempty"`
	At    time.Time     `json:"-"`
}

func (BroadcastCodePressed) broadcastMarker()      {}
func (BroadcastCodeDispatched) broadcastMarker()   {}
func (BroadcastMouseModeChanged) broadcastMarker() {}
func (BroadcastDeviceChanged) broadcastMarker()    {}
func (BroadcastVolumeChanged) broadcastMarker()    {}
func (BroadcastMuteToggled) broadcastMarker()      {}
func (BroadcastMediaRefreshed) broadcastMarker()   {}
func (BroadcastListenerState) broadcastMarker()    {}

// broadcastType is the wire name used by every observer.
func broadcastType(b StateBroadcast) string {
	switch b.(type) {
	case BroadcastCodePressed:
		return "code_pressed"
	case BroadcastCodeDispatched:
		return "code_dispatched"
	case BroadcastMouseModeChanged:
		return "mouse_mode_changed"
	case BroadcastDeviceChanged:
		return "device_changed"
	case BroadcastVolumeChanged:
		return "volume_changed"
	case BroadcastMuteToggled:
		return "mute_toggled"
	case BroadcastMediaRefreshed:
		return "media_refreshed"
	case BroadcastListenerState:
		return "listener_state"
	default:
		return ""
	}
}

// broadcastTime returns the timestamp carried by b.
func broadcastTime(b StateBroadcast) time.Time {
	switch ev := b.(type) {
	case BroadcastCodePressed:
		return ev.At
	case BroadcastCodeDispatched:
		return ev.At
	case BroadcastMouseModeChanged:
		return ev.At
	case BroadcastDeviceChanged:
		return ev.At
	case BroadcastVolumeChanged:
		return ev.At
	case BroadcastMuteToggled:
		return ev.At
	case BroadcastMediaRefreshed:
		return ev.At
	case BroadcastListenerState:
		return ev.At
	default:
		return time.Time{}
	}
}

// ============================================================================
// Bus
// ============================================================================

// Publisher is the producer side of the bus.
type Publisher interface {
	Publish(b StateBroadcast)
}

// Bus fans broadcasts out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the broadcast.
type Bus struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string]chan StateBroadcast
	closed bool
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[string]chan StateBroadcast),
	}
}

// Subscribe registers a named subscriber with a buffer of size buf.
func (b *Bus) Subscribe(name string, buf int) <-chan StateBroadcast {
	if buf <= 0 {
		buf = 64
	}
	ch := make(chan StateBroadcast, buf)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	if old, ok := b.subs[name]; ok {
		close(old)
	}
	b.subs[name] = ch
	return ch
}

func (b *Bus) Publish(ev StateBroadcast) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for name, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("subscriber queue full, dropping broadcast", "subscriber", name, "type", broadcastType(ev))
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for name, ch := range b.subs {
		close(ch)
		delete(b.subs, name)
	}
}

// nopPublisher drops everything.
type nopPublisher struct{}

func (nopPublisher) Publish(StateBroadcast) {}
