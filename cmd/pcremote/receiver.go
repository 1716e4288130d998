package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"
)

// ============================================================================
// Receivers
// ============================================================================
// A receiver delivers remote codes as text lines. ReadLine returns ok=false
// when the read timed out before a full line arrived; that is not an error.
// ============================================================================

const (
	ReceiverSerial = "serial"
	ReceiverEvdev  = "evdev"
)

// CodeReader is one open receiver link.
type CodeReader interface {
	ReadLine() (line string, ok bool, err error)
	Close() error
}

// Opener opens a receiver link from the current receiver config.
type Opener interface {
	Open(cfg ReceiverConfig) (CodeReader, string, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(cfg ReceiverConfig) (CodeReader, string, error)

func (f OpenerFunc) Open(cfg ReceiverConfig) (CodeReader, string, error) { return f(cfg) }

// openerFor picks the opener for cfg.Kind.
func openerFor(kind string) (Opener, error) {
	switch kind {
	case "", ReceiverSerial:
		return serialOpener{}, nil
	case ReceiverEvdev:
		return evdevOpener{}, nil
	default:
		return nil, fmt.Errorf("unknown receiver kind %q", kind)
	}
}

// ============================================================================
// Serial
// ============================================================================

// serialPortName resolves the device path: an explicit device wins, otherwise the
// port number is formatted into the template.
func serialPortName(cfg ReceiverConfig) string {
	if cfg.Device != "" {
		return cfg.Device
	}
	tmpl := cfg.PortTemplate
	if tmpl == "" {
		tmpl = defaultPortTemplate(runtime.GOOS)
	}
	return fmt.Sprintf(tmpl, cfg.Port)
}

func defaultPortTemplate(goos string) string {
	if goos == "windows" {
		return "COM%d"
	}
	return "/dev/ttyUSB%d"
}

type serialOpener struct{}

func (serialOpener) Open(cfg ReceiverConfig) (CodeReader, string, error) {
	name := serialPortName(cfg)
	port, err := serial.Open(name, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		var pe *serial.PortError
		if errors.As(err, &pe) && pe.Code() == serial.PortNotFound {
			if ports, lerr := serial.GetPortsList(); lerr == nil {
				return nil, name, fmt.Errorf("open %s: %w (available: %s)", name, err, strings.Join(ports, ", "))
			}
		}
		return nil, name, fmt.Errorf("open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout()); err != nil {
		_ = port.Close()
		return nil, name, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	return newLineReader(port), name, nil
}

// lineReader splits a timeout-reading stream into lines.
type lineReader struct {
	rc      io.ReadCloser
	buf     []byte
	pending []byte
}

func newLineReader(rc io.ReadCloser) *lineReader {
	return &lineReader{rc: rc, buf: make([]byte, 256)}
}

// ReadLine reads at most once. A read of zero bytes is a timeout.
func (r *lineReader) ReadLine() (string, bool, error) {
	if line, ok := r.takeLine(); ok {
		return line, true, nil
	}
	n, err := r.rc.Read(r.buf)
	if n > 0 {
		r.pending = append(r.pending, r.buf[:n]...)
	}
	if err != nil {
		return "", false, err
	}
	line, ok := r.takeLine()
	if !ok && len(r.pending) > maxLineLength {
		n := len(r.pending)
		r.pending = nil
		return "", false, fmt.Errorf("%w: no line end in %d bytes", ErrInvalidRemoteCode, n)
	}
	return line, ok, nil
}

func (r *lineReader) takeLine() (string, bool) {
	i := bytes.IndexByte(r.pending, '\n')
	if i < 0 {
		return "", false
	}
	line := strings.TrimSpace(string(r.pending[:i]))
	r.pending = r.pending[i+1:]
	return line, true
}

func (r *lineReader) Close() error {
	return r.rc.Close()
}

// ============================================================================
// Evdev translation (shared by the Linux reader and its tests)
// ============================================================================

// evdevLine maps one input event to a remote code line. Presses become the key
// code, autorepeat becomes the repeat sentinel, everything else is dropped.
func evdevLine(ev inputEvent) (string, bool) {
	if ev.Type != EV_KEY {
		return "", false
	}
	switch ev.Value {
	case evValuePress:
		return fmt.Sprintf("%s%X", remoteCodePrefix, ev.Code), true
	case evValueRepeat:
		return repeatCode, true
	default:
		return "", false
	}
}

func (cfg ReceiverConfig) ReadTimeout() time.Duration {
	ms := cfg.ReadTimeoutMS
	if ms <= 0 {
		ms = defaultReadTimeoutMS
	}
	return time.Duration(ms) * time.Millisecond
}
