//go:build linux

package main

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// evdevOpener reads key events from a Linux input device (/dev/input/eventN)
// instead of a serial receiver. Useful for IR receivers that register as a
// keyboard.
type evdevOpener struct{}

func (evdevOpener) Open(cfg ReceiverConfig) (CodeReader, string, error) {
	name := cfg.Device
	if name == "" {
		return nil, "", errors.New("evdev receiver requires receiver.device")
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, name, fmt.Errorf("open %s: %w", name, err)
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		f.Close()
		return nil, name, fmt.Errorf("epoll_create1: %w", err)
	}

	fd := int(f.Fd())
	event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		unix.Close(epfd)
		f.Close()
		return nil, name, fmt.Errorf("epoll_ctl_add fd=%d: %w", fd, err)
	}

	return &evdevReader{
		f:         f,
		epfd:      epfd,
		timeoutMS: int(cfg.ReadTimeout().Milliseconds()),
		events:    make([]unix.EpollEvent, 1),
		buf:       make([]byte, inputEventSize*64),
	}, name, nil
}

// evdevReader waits on epoll with the receiver read timeout, so an idle device
// behaves like a serial port that timed out.
type evdevReader struct {
	f         *os.File
	epfd      int
	timeoutMS int

	events []unix.EpollEvent
	buf    []byte
	queue  []string
}

func (r *evdevReader) ReadLine() (string, bool, error) {
	if line, ok := r.pop(); ok {
		return line, true, nil
	}

	n, err := unix.EpollWait(r.epfd, r.events, r.timeoutMS)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("epoll_wait: %w", err)
	}
	if n == 0 {
		return "", false, nil
	}
	if r.events[0].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		return "", false, fmt.Errorf("device error/hangup: %s", r.f.Name())
	}

	k, err := r.f.Read(r.buf)
	if err != nil {
		return "", false, fmt.Errorf("read from %s: %w", r.f.Name(), err)
	}
	for _, ev := range decodeInputEvents(r.buf[:k]) {
		if line, ok := evdevLine(ev); ok {
			r.queue = append(r.queue, line)
		}
	}
	line, ok := r.pop()
	return line, ok, nil
}

func (r *evdevReader) pop() (string, bool) {
	if len(r.queue) == 0 {
		return "", false
	}
	line := r.queue[0]
	r.queue = r.queue[1:]
	return line, true
}

func (r *evdevReader) Close() error {
	unix.Close(r.epfd)
	return r.f.Close()
}
