package main

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRemoteCode is a protocol violation on the receiver link.
	ErrInvalidRemoteCode = errors.New("invalid remote code format: it should start with '0x'")

	ErrNoDevices            = errors.New("found no devices")
	ErrReadDevicesList      = errors.New("failed to read devices list")
	ErrActiveDeviceNotFound = errors.New("active device not found")
	ErrSetVolume            = errors.New("failed to set volume")
)

// DeviceNotFoundError is returned when a switch names a device that is not in the cache.
type DeviceNotFoundError struct {
	Name string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("device not found: %s", e.Name)
}

// SwitchDeviceError is returned when the switch tool exits non-zero.
type SwitchDeviceError struct {
	Name     string
	ExitCode int
}

func (e *SwitchDeviceError) Error() string {
	return fmt.Sprintf("failed to switch to device %s (exit code %d)", e.Name, e.ExitCode)
}
