package main

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// Action Types
// ============================================================================
// An Action is what a bind does when its code arrives. The set is closed: every
// kind below has exactly one arm in Dispatcher.execute. Two kinds carry data,
// keyboard_press (Keys) and browser_open (URL); all others are singletons.
// ============================================================================

// ActionKind names an action in config and on the wire.
type ActionKind string

// Media
const (
	ActionMediaSwitchDevice     ActionKind = "media_switch_device"
	ActionMediaSwitchDevicePrev ActionKind = "media_switch_device_prev"
	ActionMediaSwitchMicro      ActionKind = "media_switch_micro"
	ActionMediaPlayPause        ActionKind = "media_play_pause"
	ActionMediaNextTrack        ActionKind = "media_next_track"
	ActionMediaPrevTrack        ActionKind = "media_prev_track"
	ActionMediaStop             ActionKind = "media_stop"
	ActionMediaMuteUnmute       ActionKind = "media_mute_unmute"
	ActionMediaVolumeUp         ActionKind = "media_volume_up"
	ActionMediaVolumeDown       ActionKind = "media_volume_down"
)

// Keyboard
const (
	ActionKeyboardPress ActionKind = "keyboard_press"
)

// Mouse
const (
	ActionMouseOnOff      ActionKind = "mouse_on_off"
	ActionMouseLeft       ActionKind = "mouse_left"
	ActionMouseRight      ActionKind = "mouse_right"
	ActionMouseUp         ActionKind = "mouse_up"
	ActionMouseDown       ActionKind = "mouse_down"
	ActionMouseClick      ActionKind = "mouse_click"
	ActionMouseScrollUp   ActionKind = "mouse_scroll_up"
	ActionMouseScrollDown ActionKind = "mouse_scroll_down"
)

// Browser
const (
	ActionBrowserOpen           ActionKind = "browser_open"
	ActionBrowserNewTab         ActionKind = "browser_new_tab"
	ActionBrowserReopenTab      ActionKind = "browser_reopen_tab"
	ActionBrowserSwitchTab      ActionKind = "browser_switch_tab"
	ActionBrowserCloseTab       ActionKind = "browser_close_tab"
	ActionBrowserHistoryBack    ActionKind = "browser_history_back"
	ActionBrowserHistoryForward ActionKind = "browser_history_forward"
	ActionBrowserBookmarkPage   ActionKind = "browser_bookmark_page"
	ActionBrowserZoomIn         ActionKind = "browser_zoom_in"
	ActionBrowserZoomOut        ActionKind = "browser_zoom_out"
)

// Windows / power
const (
	ActionWindowsExit      ActionKind = "windows_exit"
	ActionWindowsSleep     ActionKind = "windows_sleep"
	ActionWindowsPowerOff  ActionKind = "windows_power_off"
	ActionWindowsSwitchTab ActionKind = "windows_switch_tab"
)

// ActionDomain groups action kinds.
type ActionDomain string

const (
	DomainMedia    ActionDomain = "media"
	DomainKeyboard ActionDomain = "keyboard"
	DomainMouse    ActionDomain = "mouse"
	DomainBrowser  ActionDomain = "browser"
	DomainWindows  ActionDomain = "windows"
)

// actionKinds lists every kind in menu order.
var actionKinds = []ActionKind{
	ActionMediaSwitchDevice, ActionMediaSwitchDevicePrev, ActionMediaSwitchMicro,
	ActionMediaPlayPause, ActionMediaNextTrack, ActionMediaPrevTrack, ActionMediaStop,
	ActionMediaMuteUnmute, ActionMediaVolumeUp, ActionMediaVolumeDown,

	ActionKeyboardPress,

	ActionMouseOnOff, ActionMouseLeft, ActionMouseRight, ActionMouseUp, ActionMouseDown,
	ActionMouseClick, ActionMouseScrollUp, ActionMouseScrollDown,

	ActionBrowserOpen, ActionBrowserNewTab, ActionBrowserReopenTab, ActionBrowserSwitchTab,
	ActionBrowserCloseTab, ActionBrowserHistoryBack, ActionBrowserHistoryForward,
	ActionBrowserBookmarkPage, ActionBrowserZoomIn, ActionBrowserZoomOut,

	ActionWindowsExit, ActionWindowsSleep, ActionWindowsPowerOff, ActionWindowsSwitchTab,
}

// Known reports whether k is one of the defined kinds.
func (k ActionKind) Known() bool {
	for _, known := range actionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Domain returns the group k belongs to.
func (k ActionKind) Domain() ActionDomain {
	prefix, _, _ := strings.Cut(string(k), "_")
	return ActionDomain(prefix)
}

// Action is one entry of the action vocabulary together with its payload.
type Action struct {
	Kind ActionKind `yaml:"action" json:"action"`
	Keys []Key      `yaml:"keys,omitempty" json:"keys,omitempty"`
	URL  string     `yaml:"url,omitempty" json:"url,omitempty"`
}

// KeyboardPress returns a keyboard_press action for the given shortcut.
func KeyboardPress(keys ...Key) Action {
	return Action{Kind: ActionKeyboardPress, Keys: keys}
}

// BrowserOpen returns a browser_open action for url.
func BrowserOpen(url string) Action {
	return Action{Kind: ActionBrowserOpen, URL: url}
}

// Validate checks that the payload matches the kind.
func (a Action) Validate() error {
	if a.Kind == "" {
		return errors.New("action must not be empty")
	}
	if !a.Kind.Known() {
		return fmt.Errorf("unknown action %q", a.Kind)
	}

	switch a.Kind {
	case ActionKeyboardPress:
		if len(a.Keys) == 0 {
			return errors.New("keyboard_press requires at least one key")
		}
		for i, k := range a.Keys {
			if k.IsZero() {
				return fmt.Errorf("keys[%d] is empty", i)
			}
		}
	case ActionBrowserOpen:
		if strings.TrimSpace(a.URL) == "" {
			return errors.New("browser_open requires a url")
		}
	default:
		if len(a.Keys) > 0 {
			return fmt.Errorf("%s does not take keys", a.Kind)
		}
		if a.URL != "" {
			return fmt.Errorf("%s does not take a url", a.Kind)
		}
	}
	return nil
}

func (a Action) String() string {
	switch a.Kind {
	case ActionKeyboardPress:
		parts := make([]string, len(a.Keys))
		for i, k := range a.Keys {
			parts[i] = k.String()
		}
		return fmt.Sprintf("%s(%s)", a.Kind, strings.Join(parts, "+"))
	case ActionBrowserOpen:
		return fmt.Sprintf("%s(%s)", a.Kind, a.URL)
	default:
		return string(a.Kind)
	}
}
