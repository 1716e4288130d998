package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ============================================================================
// Dispatcher
// ============================================================================
// Dispatch runs every bind whose code matches, in table order. A failing bind
// is logged and the remaining binds still run; nothing is reported back to the
// listener beyond the counts in DispatchResult.
//
// Mouse mode gates two domains: while it is on, media actions do nothing; while
// it is off, mouse actions other than the toggle do nothing.
// ============================================================================

// BindSource supplies the current bind table.
type BindSource interface {
	Binds() []Bind
}

// ModeFlag is the mouse-mode switch shared by the dispatcher and the status API.
type ModeFlag struct {
	mu sync.Mutex
	on bool
}

func (f *ModeFlag) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

// Toggle flips the flag and returns the new value.
func (f *ModeFlag) Toggle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = !f.on
	return f.on
}

// DispatchResult counts what happened to the matching binds.
type DispatchResult struct {
	Matched  int `json:"matched"`
	Executed int `json:"executed"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type Dispatcher struct {
	binds   BindSource
	emu     *Emulator
	media   *Media
	mode    *ModeFlag
	power   PowerController
	browser BrowserOpener
	pub     Publisher
	logger  *slog.Logger

	hold  time.Duration
	sleep func(time.Duration)
	now   func() time.Time
}

type DispatcherDeps struct {
	Binds   BindSource
	Emu     *Emulator
	Media   *Media
	Mode    *ModeFlag
	Power   PowerController
	Browser BrowserOpener
	Pub     Publisher
	Logger  *slog.Logger
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	d := &Dispatcher{
		binds:   deps.Binds,
		emu:     deps.Emu,
		media:   deps.Media,
		mode:    deps.Mode,
		power:   deps.Power,
		browser: deps.Browser,
		pub:     deps.Pub,
		logger:  deps.Logger,
		hold:    shortcutHold,
		sleep:   time.Sleep,
		now:     time.Now,
	}
	if d.mode == nil {
		d.mode = &ModeFlag{}
	}
	if d.pub == nil {
		d.pub = nopPublisher{}
	}
	if d.browser == nil {
		d.browser = systemBrowser{}
	}
	return d
}

// Dispatch executes the binds for code. When repeating is set, binds that do not
// allow repeats are skipped.
func (d *Dispatcher) Dispatch(code string, repeating bool) DispatchResult {
	var res DispatchResult
	for _, b := range matchingBinds(d.binds.Binds(), code) {
		res.Matched++
		if repeating && !b.Repeat {
			res.Skipped++
			continue
		}
		if err := d.execute(b.Action, repeating); err != nil {
			res.Failed++
			d.logger.Error("action failed", "code", code, "bind", b.ID, "action", b.Action.String(), "error", err)
			continue
		}
		res.Executed++
	}
	d.logger.Debug("dispatched", "code", code, "repeating", repeating,
		"matched", res.Matched, "executed", res.Executed, "skipped", res.Skipped, "failed", res.Failed)
	return res
}

func stepIndex(repeating bool) int {
	if repeating {
		return 1
	}
	return 0
}

func (d *Dispatcher) execute(a Action, repeating bool) error {
	switch a.Kind.Domain() {
	case DomainMedia:
		if d.mode.On() {
			return nil
		}
		return d.executeMedia(a, repeating)
	case DomainMouse:
		if a.Kind != ActionMouseOnOff && !d.mode.On() {
			return nil
		}
		return d.executeMouse(a, repeating)
	case DomainKeyboard:
		return d.shortcut(a.Keys...)
	case DomainBrowser:
		return d.executeBrowser(a)
	case DomainWindows:
		return d.executeWindows(a)
	default:
		return fmt.Errorf("unknown action %q", a.Kind)
	}
}

// ============================================================================
// Media
// ============================================================================

func (d *Dispatcher) executeMedia(a Action, repeating bool) error {
	kb := d.emu.Keyboard()
	switch a.Kind {
	case ActionMediaSwitchDevice:
		return d.deviceChanged(d.media.SwitchNextAudioDevice())
	case ActionMediaSwitchDevicePrev:
		return d.deviceChanged(d.media.SwitchPrevAudioDevice())
	case ActionMediaSwitchMicro:
		return d.deviceChanged(d.media.SwitchNextMicroDevice())
	case ActionMediaPlayPause:
		return kb.Press(KeyPlayPause, false)
	case ActionMediaNextTrack:
		return kb.Press(KeyNextTrack, false)
	case ActionMediaPrevTrack:
		return kb.Press(KeyPrevTrack, false)
	case ActionMediaStop:
		return kb.Press(KeyStop, false)
	case ActionMediaMuteUnmute:
		err := errors.Join(d.media.SwitchAudioMute(), d.media.SwitchMicroMute())
		d.pub.Publish(BroadcastMuteToggled{At: d.now()})
		return err
	case ActionMediaVolumeUp:
		return d.volumeChanged(d.media.IncreaseAudioVolume(volumeUpSteps[stepIndex(repeating)]))
	case ActionMediaVolumeDown:
		return d.volumeChanged(d.media.DecreaseAudioVolume(volumeDownSteps[stepIndex(repeating)]))
	default:
		return fmt.Errorf("unknown media action %q", a.Kind)
	}
}

func (d *Dispatcher) deviceChanged(dev Device, err error) error {
	if err != nil {
		return err
	}
	d.pub.Publish(BroadcastDeviceChanged{Device: dev, At: d.now()})
	return nil
}

func (d *Dispatcher) volumeChanged(v int, err error) error {
	if err != nil {
		return err
	}
	d.pub.Publish(BroadcastVolumeChanged{Volume: v, At: d.now()})
	return nil
}

// ============================================================================
// Mouse
// ============================================================================

func (d *Dispatcher) executeMouse(a Action, repeating bool) error {
	m := d.emu.Mouse()
	step := mouseMoveSteps[stepIndex(repeating)]
	scroll := scrollSteps[stepIndex(repeating)]

	switch a.Kind {
	case ActionMouseOnOff:
		d.ToggleMouseMode()
		return nil
	case ActionMouseLeft:
		return m.MoveX(-step)
	case ActionMouseRight:
		return m.MoveX(step)
	case ActionMouseUp:
		return m.MoveY(-step)
	case ActionMouseDown:
		return m.MoveY(step)
	case ActionMouseClick:
		return m.PressLeft(false)
	case ActionMouseScrollUp:
		return m.ScrollY(-scroll)
	case ActionMouseScrollDown:
		return m.ScrollY(scroll)
	default:
		return fmt.Errorf("unknown mouse action %q", a.Kind)
	}
}

// ToggleMouseMode flips mouse mode outside of a bind, e.g. from IPC.
func (d *Dispatcher) ToggleMouseMode() bool {
	on := d.mode.Toggle()
	d.logger.Info("mouse mode toggled", "on", on)
	d.pub.Publish(BroadcastMouseModeChanged{On: on, At: d.now()})
	return on
}

// ============================================================================
// Browser / Windows
// ============================================================================

func (d *Dispatcher) executeBrowser(a Action) error {
	switch a.Kind {
	case ActionBrowserOpen:
		return d.browser.Open(normalizeURL(a.URL))
	case ActionBrowserNewTab:
		return d.shortcut(KeyCtrl, LetterKey('t'))
	case ActionBrowserReopenTab:
		return d.shortcut(KeyCtrl, KeyShift, LetterKey('t'))
	case ActionBrowserSwitchTab:
		return d.shortcut(KeyCtrl, KeyTab)
	case ActionBrowserCloseTab:
		return d.shortcut(KeyCtrl, LetterKey('w'))
	case ActionBrowserHistoryBack:
		return d.shortcut(KeyAlt, KeyLeft)
	case ActionBrowserHistoryForward:
		return d.shortcut(KeyAlt, KeyRight)
	case ActionBrowserBookmarkPage:
		if err := d.shortcut(KeyCtrl, LetterKey('d')); err != nil {
			return err
		}
		return d.emu.Keyboard().Press(KeyEnter, false)
	case ActionBrowserZoomIn:
		return d.shortcut(KeyCtrl, KeyEqual)
	case ActionBrowserZoomOut:
		return d.shortcut(KeyCtrl, KeyMinus)
	default:
		return fmt.Errorf("unknown browser action %q", a.Kind)
	}
}

func (d *Dispatcher) executeWindows(a Action) error {
	switch a.Kind {
	case ActionWindowsExit:
		return d.power.LogOff()
	case ActionWindowsSleep:
		return d.power.Suspend()
	case ActionWindowsPowerOff:
		return d.power.PowerOff()
	case ActionWindowsSwitchTab:
		return d.shortcut(KeyCtrl, KeyTab)
	default:
		return fmt.Errorf("unknown windows action %q", a.Kind)
	}
}

// shortcut holds keys down together, waits, then releases them in the same order.
// The release always happens, even when a press failed.
func (d *Dispatcher) shortcut(keys ...Key) error {
	kb := d.emu.Keyboard()
	pressErr := kb.PressAll(keys, true)
	if pressErr == nil {
		d.sleep(d.hold)
	}
	return errors.Join(pressErr, kb.ReleaseAll(keys))
}
