package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ============================================================================
// Listener - receiver connection and repeat state machine
// ============================================================================
//
// Lifecycle: Disconnected -> Connecting -> Listening -> Disconnected.
// A protocol violation or I/O error drops back to Disconnected, waits
// reconnectBackoff and reconnects with the receiver config as it is then.
// Run returns only when ctx is canceled.
//
// Per line:
//   - empty / timeout: loop
//   - not "0x...":     protocol violation, connection ends
//   - repeat sentinel: repeat last code if one exists and repeatTimeout passed
//   - same code:       held repeat, no new broadcast
//   - new code:        one "pressed" broadcast, fresh dispatch
//
// The session state below is owned by the Run goroutine. Lines injected over
// IPC are drained between reads by the same goroutine.
//
// ============================================================================

// ListenerState is the connection state.
type ListenerState string

const (
	StateDisconnected ListenerState = "disconnected"
	StateConnecting   ListenerState = "connecting"
	StateListening    ListenerState = "listening"
)

// CodeDispatcher executes the binds for a code.
type CodeDispatcher interface {
	Dispatch(code string, repeating bool) DispatchResult
}

// MediaRefresher is refreshed while the remote is idle.
type MediaRefresher interface {
	UpdateInfo() error
	Snapshot() MediaSnapshot
}

// session is the per-connection dispatch state.
type session struct {
	lastCode   string
	lastAction time.Time
	lastUpdate time.Time
}

type Listener struct {
	receiver   func() ReceiverConfig
	openers    func(kind string) (Opener, error)
	dispatcher CodeDispatcher
	media      MediaRefresher
	pub        Publisher
	logger     *slog.Logger

	now     func() time.Time
	backoff time.Duration

	inject chan string

	mu        sync.Mutex
	state     ListenerState
	port      string
	lastCode  string
	lastError string
}

type ListenerDeps struct {
	Receiver   func() ReceiverConfig
	Dispatcher CodeDispatcher
	Media      MediaRefresher
	Pub        Publisher
	Logger     *slog.Logger
}

func NewListener(deps ListenerDeps) *Listener {
	l := &Listener{
		receiver:   deps.Receiver,
		openers:    openerFor,
		dispatcher: deps.Dispatcher,
		media:      deps.Media,
		pub:        deps.Pub,
		logger:     deps.Logger,
		now:        time.Now,
		backoff:    reconnectBackoff,
		inject:     make(chan string, injectQueueSize),
		state:      StateDisconnected,
	}
	if l.pub == nil {
		l.pub = nopPublisher{}
	}
	return l
}

// ListenerStatus is a copy of the observable listener state.
type ListenerStatus struct {
	State     ListenerState `json:"state"`
	Port      string        `json:"port,omitempty"`
	LastCode  string        `json:"last_code,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

func (l *Listener) Status() ListenerStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ListenerStatus{
		State:     l.state,
		Port:      l.port,
		LastCode:  l.lastCode,
		LastError: l.lastError,
	}
}

// Inject queues a code as if it had been received. It fails when the queue is full.
func (l *Listener) Inject(code string) error {
	code = strings.TrimSpace(code)
	if err := validateRemoteCode(code); err != nil {
		return err
	}
	select {
	case l.inject <- code:
		return nil
	default:
		return errors.New("inject queue full")
	}
}

func (l *Listener) setState(s ListenerState, port string) {
	l.mu.Lock()
	changed := l.state != s || l.port != port
	l.state = s
	l.port = port
	l.mu.Unlock()

	if changed {
		l.pub.Publish(BroadcastListenerState{State: s, Port: port, At: l.now()})
	}
}

func (l *Listener) setError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		l.lastError = ""
		return
	}
	l.lastError = err.Error()
}

// Run connects, listens and reconnects until ctx is canceled.
func (l *Listener) Run(ctx context.Context) error {
	defer l.setState(StateDisconnected, "")

	for {
		if ctx.Err() != nil {
			return nil
		}

		cfg := l.receiver()
		l.setState(StateConnecting, "")

		opener, err := l.openers(cfg.Kind)
		if err != nil {
			l.connectionFailed(ctx, err, "")
			continue
		}

		reader, port, err := opener.Open(cfg)
		if err != nil {
			l.connectionFailed(ctx, err, port)
			continue
		}

		l.setState(StateListening, port)
		l.setError(nil)
		l.logger.Info("reading remote inputs", "port", port, "kind", cfg.Kind)

		err = l.handle(ctx, reader)
		if cerr := reader.Close(); cerr != nil {
			l.logger.Debug("receiver close failed", "port", port, "error", cerr)
		}
		if ctx.Err() != nil {
			return nil
		}
		l.connectionFailed(ctx, err, port)
	}
}

func (l *Listener) connectionFailed(ctx context.Context, err error, port string) {
	l.setState(StateDisconnected, port)
	l.setError(err)
	l.logger.Error("receiver connection failed", "port", port, "error", err)

	t := time.NewTimer(l.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// handle runs one connection until a protocol violation, an I/O error or ctx ends.
func (l *Listener) handle(ctx context.Context, reader CodeReader) error {
	now := l.now()
	s := &session{lastAction: now, lastUpdate: now}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		l.housekeeping(s)
		l.drainInjected(s)

		line, ok, err := reader.ReadLine()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := l.processLine(s, line); err != nil {
			return err
		}
	}
}

// housekeeping refreshes the media cache once the remote has been idle for
// actionInterval and the last refresh is older than updateInterval.
func (l *Listener) housekeeping(s *session) {
	now := l.now()
	if now.Sub(s.lastAction) < actionInterval {
		s.lastUpdate = now
		return
	}
	if now.Sub(s.lastUpdate) < updateInterval {
		return
	}
	if l.media != nil {
		if err := l.media.UpdateInfo(); err != nil {
			l.logger.Error("failed to update media info", "error", err)
		} else {
			l.pub.Publish(BroadcastMediaRefreshed{Media: l.media.Snapshot(), At: now})
		}
	}
	s.lastUpdate = l.now()
}

func (l *Listener) drainInjected(s *session) {
	for {
		select {
		case code := <-l.inject:
			if err := l.processLine(s, code); err != nil {
				l.logger.Warn("injected code rejected", "code", code, "error", err)
			}
		default:
			return
		}
	}
}

// processLine classifies one line and dispatches it. Only protocol violations are returned.
func (l *Listener) processLine(s *session, line string) error {
	code := strings.TrimSpace(line)
	if code == "" {
		return nil
	}
	if err := validateRemoteCode(code); err != nil {
		return err
	}

	now := l.now()

	if code == repeatCode {
		if s.lastCode == "" || now.Sub(s.lastAction) < repeatTimeout {
			return nil
		}
		l.dispatch(s, s.lastCode, true, now)
		return nil
	}

	repeating := code == s.lastCode
	if !repeating {
		s.lastCode = code
		l.logger.Info("pressed button", "code", code)

		l.mu.Lock()
		l.lastCode = code
		l.mu.Unlock()

		l.pub.Publish(BroadcastCodePressed{Code: code, At: now})
	}

	l.dispatch(s, code, repeating, now)
	return nil
}

func (l *Listener) dispatch(s *session, code string, repeating bool, now time.Time) {
	res := l.dispatcher.Dispatch(code, repeating)
	s.lastAction = l.now()
	l.pub.Publish(BroadcastCodeDispatched{Code: code, Repeating: repeating, Result: res, At: now})
}
