package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recordingAutomator records every call as a short string, e.g. "key ctrl press".
type recordingAutomator struct {
	mu    sync.Mutex
	calls []string
	// failKey makes Key fail for this key name and direction.
	failKey string
	failDir Direction
}

func (r *recordingAutomator) record(format string, args ...any) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recordingAutomator) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingAutomator) Key(k Key, dir Direction) error {
	r.record("key %s %s", k, dir)
	if r.failKey != "" && k.String() == r.failKey && dir == r.failDir {
		return fmt.Errorf("key %s failed", k)
	}
	return nil
}

func (r *recordingAutomator) MoveRelative(dx, dy int) error {
	r.record("move %d %d", dx, dy)
	return nil
}

func (r *recordingAutomator) Button(b MouseButton, dir Direction) error {
	r.record("button %s %s", b, dir)
	return nil
}

func (r *recordingAutomator) Scroll(delta int, axis Axis) error {
	name := "v"
	if axis == Horizontal {
		name = "h"
	}
	r.record("scroll %d %s", delta, name)
	return nil
}

// recordingPublisher keeps every broadcast.
type recordingPublisher struct {
	mu     sync.Mutex
	events []StateBroadcast
}

func (p *recordingPublisher) Publish(b StateBroadcast) {
	p.mu.Lock()
	p.events = append(p.events, b)
	p.mu.Unlock()
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = broadcastType(e)
	}
	return out
}

func (p *recordingPublisher) Events() []StateBroadcast {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StateBroadcast(nil), p.events...)
}

type staticBinds []Bind

func (s staticBinds) Binds() []Bind { return s }

type fakePower struct {
	calls []string
	err   error
}

func (p *fakePower) LogOff() error {
	p.calls = append(p.calls, "logoff")
	return p.err
}

func (p *fakePower) Suspend() error {
	p.calls = append(p.calls, "suspend")
	return p.err
}

func (p *fakePower) PowerOff() error {
	p.calls = append(p.calls, "poweroff")
	return p.err
}

type fakeBrowser struct {
	urls []string
}

func (b *fakeBrowser) Open(url string) error {
	b.urls = append(b.urls, url)
	return nil
}

// fakeRunner answers tool invocations from canned results and records the command lines.
type fakeRunner struct {
	mu       sync.Mutex
	commands []string
	output   []byte
	outErr   error
	codes    map[string]int
	runErr   error
}

func (r *fakeRunner) line(name string, args ...string) string {
	s := name
	for _, a := range args {
		s += " " + a
	}
	r.mu.Lock()
	r.commands = append(r.commands, s)
	r.mu.Unlock()
	return s
}

func (r *fakeRunner) Output(name string, args ...string) ([]byte, error) {
	r.line(name, args...)
	return r.output, r.outErr
}

func (r *fakeRunner) Run(name string, args ...string) (int, error) {
	s := r.line(name, args...)
	if r.runErr != nil {
		return -1, r.runErr
	}
	return r.codes[s], nil
}

func (r *fakeRunner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}
