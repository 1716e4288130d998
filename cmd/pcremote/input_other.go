//go:build !linux

package main

import (
	"fmt"
	"runtime"
)

type evdevOpener struct{}

func (evdevOpener) Open(cfg ReceiverConfig) (CodeReader, string, error) {
	return nil, cfg.Device, fmt.Errorf("evdev receiver is not supported on %s", runtime.GOOS)
}
