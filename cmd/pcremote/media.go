package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// DeviceKind tells output devices from microphones.
type DeviceKind string

const (
	DeviceAudio DeviceKind = "audio"
	DeviceMicro DeviceKind = "micro"
)

// Device is one entry of a device enumeration.
type Device struct {
	Name   string     `json:"name"`
	Kind   DeviceKind `json:"kind"`
	Active bool       `json:"active"`
}

// DeviceFilter reports whether a device should be kept.
type DeviceFilter func(name string, kind DeviceKind) bool

// mixerFilter hides the sub-channels of a virtual mixer (names containing pattern)
// except its microphone.
func mixerFilter(pattern string) DeviceFilter {
	return func(name string, kind DeviceKind) bool {
		return !strings.Contains(name, pattern) || kind == DeviceMicro
	}
}

// Media caches the device list, the active audio device and its volume. The cache is
// only changed by Media itself: after an enumeration or volume query, or after a switch
// or volume command succeeds.
type Media struct {
	mu sync.Mutex

	tools  MediaTools
	filter func() DeviceFilter
	logger *slog.Logger

	devices []Device
	active  *Device
	volume  int
}

// MediaSnapshot is a copy of the cache.
type MediaSnapshot struct {
	Devices []Device `json:"devices"`
	Active  *Device  `json:"active,omitempty"`
	Volume  int      `json:"volume"`
}

// NewMedia builds the subsystem. filter is consulted on every enumeration so a
// config change applies to the next refresh; it may be nil or return nil.
func NewMedia(tools MediaTools, filter func() DeviceFilter, logger *slog.Logger) *Media {
	return &Media{
		tools:  tools,
		filter: filter,
		logger: logger,
	}
}

// Init loads the cache. If no audio device is active it switches to the next one once.
func (m *Media) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.updateInfoLocked()
	if errors.Is(err, ErrActiveDeviceNotFound) {
		m.logger.Warn("no active audio device, switching to the next one")
		_, err = m.switchLocked(DeviceAudio, +1)
	}
	return err
}

// ============================================================================
// Cache refresh
// ============================================================================

// UpdateInfo re-enumerates devices and re-reads the volume.
func (m *Media) UpdateInfo() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateInfoLocked()
}

func (m *Media) updateInfoLocked() error {
	if err := m.updateDevicesLocked(); err != nil {
		return err
	}
	return m.updateVolumeLocked()
}

func (m *Media) updateDevicesLocked() error {
	out, err := m.tools.ListDevices()
	if err != nil {
		return errors.Join(ErrReadDevicesList, err)
	}
	var filter DeviceFilter
	if m.filter != nil {
		filter = m.filter()
	}
	active, devices, err := parseDeviceList(out, filter, m.logger)
	if err != nil {
		return err
	}
	m.devices = devices
	m.active = active
	return nil
}

func (m *Media) updateVolumeLocked() error {
	v, err := m.audioVolumeLocked()
	if err != nil {
		return err
	}
	m.volume = v
	return nil
}

// ============================================================================
// Cached reads
// ============================================================================

// Devices returns the cached device list.
func (m *Media) Devices() []Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Device(nil), m.devices...)
}

// Active returns the cached active audio device.
func (m *Media) Active() (Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Device{}, false
	}
	return *m.active, true
}

// Volume returns the cached volume percent.
func (m *Media) Volume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *Media) Snapshot() MediaSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := MediaSnapshot{
		Devices: append([]Device(nil), m.devices...),
		Volume:  m.volume,
	}
	if m.active != nil {
		a := *m.active
		snap.Active = &a
	}
	return snap
}

func (m *Media) AudioDevices() []Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devicesOfLocked(DeviceAudio)
}

func (m *Media) MicroDevices() []Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devicesOfLocked(DeviceMicro)
}

func (m *Media) devicesOfLocked(kind DeviceKind) []Device {
	var out []Device
	for _, d := range m.devices {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func (m *Media) ActiveAudioDevice() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeOfLocked(DeviceAudio)
}

func (m *Media) ActiveMicroDevice() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeOfLocked(DeviceMicro)
}

func (m *Media) activeOfLocked(kind DeviceKind) (Device, error) {
	for _, d := range m.devicesOfLocked(kind) {
		if d.Active {
			return d, nil
		}
	}
	return Device{}, ErrActiveDeviceNotFound
}

// ============================================================================
// Switching
// ============================================================================

// SetAudioDevice makes name the default output device.
func (m *Media) SetAudioDevice(name string) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setDeviceLocked(DeviceAudio, name)
}

// SetMicroDevice makes name the default microphone.
func (m *Media) SetMicroDevice(name string) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setDeviceLocked(DeviceMicro, name)
}

func (m *Media) SwitchNextAudioDevice() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.switchLocked(DeviceAudio, +1)
}

func (m *Media) SwitchPrevAudioDevice() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.switchLocked(DeviceAudio, -1)
}

func (m *Media) SwitchNextMicroDevice() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.switchLocked(DeviceMicro, +1)
}

func (m *Media) SwitchPrevMicroDevice() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.switchLocked(DeviceMicro, -1)
}

// switchLocked moves step places from the active device of kind, wrapping around.
// With no active device the walk starts from index 0.
func (m *Media) switchLocked(kind DeviceKind, step int) (Device, error) {
	devices := m.devicesOfLocked(kind)
	if len(devices) == 0 {
		return Device{}, ErrNoDevices
	}
	current := 0
	for i, d := range devices {
		if d.Active {
			current = i
			break
		}
	}
	n := len(devices)
	next := ((current+step)%n + n) % n
	return m.setDeviceLocked(kind, devices[next].Name)
}

func (m *Media) setDeviceLocked(kind DeviceKind, name string) (Device, error) {
	for _, d := range m.devicesOfLocked(kind) {
		if d.Name != name {
			continue
		}
		code, err := m.tools.SetDefault(name)
		if err != nil {
			return Device{}, err
		}
		if code != 0 {
			return Device{}, &SwitchDeviceError{Name: name, ExitCode: code}
		}
		if err := m.updateInfoLocked(); err != nil {
			return Device{}, fmt.Errorf("refresh after switch: %w", err)
		}
		m.logger.Info("switched device", "kind", kind, "name", name)
		return m.activeOfLocked(kind)
	}
	return Device{}, &DeviceNotFoundError{Name: name}
}

// ============================================================================
// Volume
// ============================================================================

// AudioVolume asks the volume tool for the active device volume.
func (m *Media) AudioVolume() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioVolumeLocked()
}

// The query tool encodes the percentage as exit code = percent * 10.
func (m *Media) audioVolumeLocked() (int, error) {
	if m.active == nil {
		return 0, ErrActiveDeviceNotFound
	}
	code, err := m.tools.GetPercent(m.active.Name)
	if err != nil {
		return 0, err
	}
	return code / 10, nil
}

// SetAudioVolume sets the master volume to v percent, clamped to [0, 100]. The cache
// takes the requested value only when the tool succeeds.
func (m *Media) SetAudioVolume(v int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setVolumeLocked(v)
}

func (m *Media) IncreaseAudioVolume(delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setVolumeLocked(min(m.volume+delta, 100))
}

func (m *Media) DecreaseAudioVolume(delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setVolumeLocked(max(m.volume-delta, 0))
}

func (m *Media) setVolumeLocked(v int) (int, error) {
	v = min(max(v, 0), 100)
	code, err := m.tools.SetSystemVolume(v * nircmdVolumeMax / 100)
	if err != nil {
		return m.volume, err
	}
	if code != 0 {
		return m.volume, ErrSetVolume
	}
	m.volume = v
	return v, nil
}

// ============================================================================
// Mute
// ============================================================================

// SwitchAudioMute toggles mute on the active audio device. A failing tool is logged only.
func (m *Media) SwitchAudioMute() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrActiveDeviceNotFound
	}
	return m.toggleMuteLocked(*m.active)
}

// SwitchMicroMute toggles mute on the active microphone. A failing tool is logged only.
func (m *Media) SwitchMicroMute() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev, err := m.activeOfLocked(DeviceMicro)
	if err != nil {
		return err
	}
	return m.toggleMuteLocked(dev)
}

func (m *Media) toggleMuteLocked(dev Device) error {
	code, err := m.tools.ToggleMute(dev.Name)
	if err != nil {
		return err
	}
	if code != 0 {
		m.logger.Error("failed to toggle mute", "kind", dev.Kind, "name", dev.Name, "exit_code", code)
		return nil
	}
	m.logger.Info("toggled mute", "kind", dev.Kind, "name", dev.Name)
	return nil
}

func (m *Media) AudioIsMuted() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return false, ErrActiveDeviceNotFound
	}
	return m.isMutedLocked(*m.active)
}

func (m *Media) MicroIsMuted() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev, err := m.activeOfLocked(DeviceMicro)
	if err != nil {
		return false, err
	}
	return m.isMutedLocked(dev)
}

// The query tool exits with 1 for muted and 0 otherwise.
func (m *Media) isMutedLocked(dev Device) (bool, error) {
	code, err := m.tools.GetMute(dev.Name)
	if err != nil {
		return false, err
	}
	return code == 1, nil
}
