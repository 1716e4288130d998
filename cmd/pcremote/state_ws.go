package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Event feed (/ws)
// ============================================================================
//
// An observer connects, gets one state_init frame built from the current
// Status, then every bus broadcast as a {type, ts, data} text frame.
//
// Observers never talk back. Inbound data is discarded and pongs only extend
// the read deadline. An observer whose queue is full is dropped.
//
// ============================================================================

const (
	feedWriteWait    = 5 * time.Second
	feedPongWait     = 30 * time.Second
	feedPingInterval = 20 * time.Second

	// Observers send control frames only.
	feedReadLimit = 512

	feedFrameQueue    = 128
	observerQueueSize = 32

	// Held volume keys produce bursts of volume_changed; only the latest value
	// in each window reaches observers.
	wsVolumeCoalesceWindow = 50 * time.Millisecond
)

// feedFrame is the wire envelope of every feed message.
type feedFrame struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// encodeFrame marshals one feed message. A zero at is stamped with the current time.
func encodeFrame(typ string, at time.Time, data any) ([]byte, error) {
	if at.IsZero() {
		at = time.Now()
	}
	ts := at.UTC()
	return json.Marshal(feedFrame{Type: typ, Ts: &ts, Data: data})
}

// StatusFunc returns the current daemon status.
type StatusFunc func() Status

type observer struct {
	conn  *websocket.Conn
	queue chan []byte
	addr  string
}

func (o *observer) hangUp() {
	if o.conn != nil {
		_ = o.conn.Close()
	}
}

// Feed owns the set of connected observers. Run must be started before
// observers connect; it is the only goroutine that adds, drops or writes to
// observer queues.
type Feed struct {
	logger *slog.Logger
	status StatusFunc

	frames chan []byte
	joins  chan *observer
	leaves chan *observer
	done   chan struct{}

	queueSize int

	mu        sync.Mutex
	observers map[*observer]struct{}
}

func NewFeed(logger *slog.Logger, status StatusFunc) *Feed {
	return &Feed{
		logger:    logger,
		status:    status,
		frames:    make(chan []byte, feedFrameQueue),
		joins:     make(chan *observer, 16),
		leaves:    make(chan *observer, 16),
		done:      make(chan struct{}),
		queueSize: observerQueueSize,
		observers: make(map[*observer]struct{}),
	}
}

// Observers reports how many observers are connected.
func (f *Feed) Observers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}

// Run serves joins, leaves and frames until ctx is canceled, then
// disconnects every observer.
func (f *Feed) Run(ctx context.Context) {
	defer close(f.done)

	for {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			for o := range f.observers {
				f.dropLocked(o, "shutdown")
			}
			f.mu.Unlock()
			return

		case o := <-f.joins:
			f.admit(o)

		case o := <-f.leaves:
			f.mu.Lock()
			f.dropLocked(o, "closed")
			f.mu.Unlock()

		case frame := <-f.frames:
			f.mu.Lock()
			for o := range f.observers {
				select {
				case o.queue <- frame:
				default:
					f.dropLocked(o, "queue full")
				}
			}
			f.mu.Unlock()
		}
	}
}

// admit queues state_init ahead of any broadcast, then adds the observer.
func (f *Feed) admit(o *observer) {
	if f.status != nil {
		frame, err := encodeFrame("state_init", time.Time{}, f.status())
		if err != nil {
			f.logger.Warn("ws state_init marshal failed", "error", err)
		} else {
			select {
			case o.queue <- frame:
			default:
			}
		}
	}

	f.mu.Lock()
	f.observers[o] = struct{}{}
	n := len(f.observers)
	f.mu.Unlock()
	f.logger.Info("ws observer connected", "remote_addr", o.addr, "observers", n)
}

func (f *Feed) dropLocked(o *observer, reason string) {
	if _, ok := f.observers[o]; !ok {
		return
	}
	delete(f.observers, o)
	// deliver sees the closed queue and hangs up.
	close(o.queue)
	f.logger.Info("ws observer disconnected", "remote_addr", o.addr, "reason", reason, "observers", len(f.observers))
}

func (f *Feed) leave(o *observer) {
	select {
	case f.leaves <- o:
	case <-f.done:
	}
}

// Publish enqueues an encoded frame. It never blocks; a full queue drops the frame.
func (f *Feed) Publish(frame []byte) {
	select {
	case f.frames <- frame:
	default:
		f.logger.Warn("ws feed queue full, dropping frame", "bytes", len(frame))
	}
}

var feedUpgrader = websocket.Upgrader{
	// The feed is bound to localhost by default; any origin may read it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	o := &observer{conn: conn, queue: make(chan []byte, f.queueSize), addr: r.RemoteAddr}
	select {
	case f.joins <- o:
	case <-f.done:
		o.hangUp()
		return
	}

	// Both loops outlive the request; the feed and the connection end them.
	go f.deliver(o)
	go f.watch(o)
}

// deliver writes queued frames and keepalive pings until the queue is closed
// or a write fails.
func (f *Feed) deliver(o *observer) {
	ping := time.NewTicker(feedPingInterval)
	defer ping.Stop()

	for {
		var err error
		select {
		case frame, ok := <-o.queue:
			_ = o.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = o.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				o.hangUp()
				return
			}
			err = o.conn.WriteMessage(websocket.TextMessage, frame)
		case <-ping.C:
			err = o.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait))
		}
		if err != nil {
			f.logger.Debug("ws write failed", "remote_addr", o.addr, "error", err)
			// Closing the connection ends watch, which reports the leave.
			o.hangUp()
			return
		}
	}
}

// watch discards inbound messages and reports the observer gone on the first read error.
func (f *Feed) watch(o *observer) {
	o.conn.SetReadLimit(feedReadLimit)
	_ = o.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	o.conn.SetPongHandler(func(string) error {
		return o.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	for {
		if _, _, err := o.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				f.logger.Info("ws observer read failed", "remote_addr", o.addr, "error", err)
			}
			f.leave(o)
			return
		}
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// volumeCoalescer holds the latest volume_changed until its window closes.
// The window starts at the first held value and is not extended.
type volumeCoalescer struct {
	pending StateBroadcast
	timer   *time.Timer
}

func (c *volumeCoalescer) hold(b StateBroadcast) {
	c.pending = b
	if c.timer == nil {
		c.timer = time.NewTimer(wsVolumeCoalesceWindow)
	}
}

func (c *volumeCoalescer) expired() <-chan time.Time {
	if c.timer == nil {
		return nil
	}
	return c.timer.C
}

func (c *volumeCoalescer) take() (StateBroadcast, bool) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	b := c.pending
	c.pending = nil
	return b, b != nil
}

// RunBroadcaster encodes bus broadcasts into feed frames in arrival order.
// A held volume frame is flushed before any later broadcast.
func RunBroadcaster(ctx context.Context, feed *Feed, src <-chan StateBroadcast, logger *slog.Logger) {
	if feed == nil || src == nil {
		return
	}

	var vol volumeCoalescer
	send := func(b StateBroadcast) {
		frame, err := encodeFrame(broadcastType(b), broadcastTime(b), b)
		if err != nil {
			logger.Warn("ws broadcast marshal failed", "type", broadcastType(b), "error", err)
			return
		}
		feed.Publish(frame)
	}
	flush := func() {
		if b, ok := vol.take(); ok {
			send(b)
		}
	}
	defer flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-vol.expired():
			flush()
		case b, ok := <-src:
			if !ok {
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}
			if broadcastType(b) == "" {
				continue
			}
			if _, isVolume := b.(BroadcastVolumeChanged); isVolume {
				vol.hold(b)
				continue
			}
			flush()
			send(b)
		}
	}
}
