package main

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"unicode"
)

// Automation backends drive the OS through a command-line helper: xdotool on X11,
// nircmd on Windows. Both go through the same ToolRunner as the media tools.

const (
	AutomationAuto    = "auto"
	AutomationXdotool = "xdotool"
	AutomationNircmd  = "nircmd"
)

// newAutomator builds the configured backend.
func newAutomator(backend string, runner ToolRunner, nircmdPath string) (Automator, error) {
	if backend == "" || backend == AutomationAuto {
		backend = AutomationXdotool
		if runtime.GOOS == "windows" {
			backend = AutomationNircmd
		}
	}
	switch backend {
	case AutomationXdotool:
		return &xdotoolAutomator{runner: runner, path: "xdotool"}, nil
	case AutomationNircmd:
		return &nircmdAutomator{runner: runner, path: nircmdPath}, nil
	default:
		return nil, fmt.Errorf("unknown automation backend %q", backend)
	}
}

func runChecked(runner ToolRunner, name string, args ...string) error {
	code, err := runner.Run(name, args...)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%s %s: exit code %d", name, strings.Join(args, " "), code)
	}
	return nil
}

// ============================================================================
// xdotool
// ============================================================================

var xdotoolKeysyms = map[string]string{
	"esc": "Escape", "tab": "Tab", "capslock": "Caps_Lock", "shift": "shift", "ctrl": "ctrl",
	"alt": "alt", "win": "super", "space": "space", "enter": "Return", "backspace": "BackSpace",
	"delete": "Delete", "left": "Left", "right": "Right", "up": "Up", "down": "Down",
	"plus": "plus", "minus": "minus", "equal": "equal", "multiply": "asterisk", "divide": "slash",
	"play_pause": "XF86AudioPlay", "prev_track": "XF86AudioPrev", "next_track": "XF86AudioNext",
	"stop": "XF86AudioStop", "volume_up": "XF86AudioRaiseVolume",
	"volume_down": "XF86AudioLowerVolume", "mute": "XF86AudioMute",
}

type xdotoolAutomator struct {
	runner ToolRunner
	path   string
}

func xdotoolKeysym(k Key) string {
	k = k.Resolved()
	if n, ok := k.Num(); ok {
		return fmt.Sprintf("0x%x", n)
	}
	if r, ok := k.Char(); ok {
		return fmt.Sprintf("U%04X", r)
	}
	name := k.Name()
	if sym, ok := xdotoolKeysyms[name]; ok {
		return sym
	}
	if len(name) > 1 && name[0] == 'f' {
		return strings.ToUpper(name)
	}
	return name
}

func (x *xdotoolAutomator) Key(k Key, dir Direction) error {
	cmd := "key"
	switch dir {
	case Press:
		cmd = "keydown"
	case Release:
		cmd = "keyup"
	}
	return runChecked(x.runner, x.path, cmd, xdotoolKeysym(k))
}

func (x *xdotoolAutomator) MoveRelative(dx, dy int) error {
	return runChecked(x.runner, x.path, "mousemove_relative", "--", strconv.Itoa(dx), strconv.Itoa(dy))
}

func xdotoolButton(b MouseButton) string {
	if b == ButtonRight {
		return "3"
	}
	return "1"
}

func (x *xdotoolAutomator) Button(b MouseButton, dir Direction) error {
	cmd := "click"
	switch dir {
	case Press:
		cmd = "mousedown"
	case Release:
		cmd = "mouseup"
	}
	return runChecked(x.runner, x.path, cmd, xdotoolButton(b))
}

// Scroll clicks the X11 wheel buttons: 4 up, 5 down, 6 left, 7 right.
func (x *xdotoolAutomator) Scroll(delta int, axis Axis) error {
	if delta == 0 {
		return nil
	}
	button, n := 5, delta
	if delta < 0 {
		button, n = 4, -delta
	}
	if axis == Horizontal {
		button += 2
	}
	return runChecked(x.runner, x.path, "click", "--repeat", strconv.Itoa(n), strconv.Itoa(button))
}

// ============================================================================
// nircmd
// ============================================================================

// Keys nircmd has no name for are sent as virtual-key codes.
var nircmdKeys = map[string]string{
	"esc": "esc", "tab": "tab", "capslock": "capslock", "shift": "shift", "ctrl": "ctrl",
	"alt": "alt", "win": "lwin", "space": "spc", "enter": "enter", "backspace": "backspace",
	"delete": "delete", "left": "left", "right": "right", "up": "up", "down": "down",
	"plus": "0xBB", "minus": "0xBD", "equal": "0xBB", "multiply": "multiply", "divide": "divide",
	"play_pause": "0xB3", "prev_track": "0xB1", "next_track": "0xB0", "stop": "0xB2",
	"volume_up": "0xAF", "volume_down": "0xAE", "mute": "0xAD",
}

// wheelDelta is one wheel notch in Windows units.
const wheelDelta = 120

type nircmdAutomator struct {
	runner ToolRunner
	path   string
}

func nircmdKey(k Key) (string, error) {
	k = k.Resolved()
	if n, ok := k.Num(); ok {
		return fmt.Sprintf("0x%X", n), nil
	}
	if r, ok := k.Char(); ok {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return strings.ToLower(string(r)), nil
		}
		return "", fmt.Errorf("nircmd cannot type %q", r)
	}
	if name, ok := nircmdKeys[k.Name()]; ok {
		return name, nil
	}
	return k.Name(), nil
}

func nircmdAction(dir Direction) string {
	switch dir {
	case Press:
		return "down"
	case Release:
		return "up"
	default:
		return "press"
	}
}

func (n *nircmdAutomator) Key(k Key, dir Direction) error {
	key, err := nircmdKey(k)
	if err != nil {
		return err
	}
	return runChecked(n.runner, n.path, "sendkey", key, nircmdAction(dir))
}

func (n *nircmdAutomator) MoveRelative(dx, dy int) error {
	return runChecked(n.runner, n.path, "sendmouse", "move", strconv.Itoa(dx), strconv.Itoa(dy))
}

func (n *nircmdAutomator) Button(b MouseButton, dir Direction) error {
	action := "click"
	switch dir {
	case Press:
		action = "down"
	case Release:
		action = "up"
	}
	return runChecked(n.runner, n.path, "sendmouse", string(b), action)
}

// Scroll uses the vertical wheel only; nircmd has no horizontal wheel command.
func (n *nircmdAutomator) Scroll(delta int, axis Axis) error {
	if axis == Horizontal {
		return fmt.Errorf("nircmd: horizontal scroll is not supported")
	}
	if delta == 0 {
		return nil
	}
	return runChecked(n.runner, n.path, "sendmouse", "wheel", strconv.Itoa(-delta*wheelDelta))
}
