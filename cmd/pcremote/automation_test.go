package main

import (
	"errors"
	"os/user"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXdotoolAutomator_Commands(t *testing.T) {
	r := &fakeRunner{}
	auto, err := newAutomator(AutomationXdotool, r, "")
	require.NoError(t, err)

	require.NoError(t, auto.Key(KeyPlayPause, Click))
	require.NoError(t, auto.Key(KeyCtrl, Press))
	require.NoError(t, auto.Key(LetterKey('T'), Release))
	require.NoError(t, auto.Key(NumKey(7), Click))
	require.NoError(t, auto.Key(NumKey(0x1008ff13), Click))
	require.NoError(t, auto.Key(UnicodeKey('é'), Click))
	require.NoError(t, auto.Key(named("f5"), Click))
	require.NoError(t, auto.MoveRelative(-30, 0))
	require.NoError(t, auto.Button(ButtonLeft, Click))
	require.NoError(t, auto.Button(ButtonRight, Press))
	require.NoError(t, auto.Scroll(-2, Vertical))
	require.NoError(t, auto.Scroll(5, Vertical))
	require.NoError(t, auto.Scroll(1, Horizontal))
	require.NoError(t, auto.Scroll(0, Vertical))

	assert.Equal(t, []string{
		"xdotool key XF86AudioPlay",
		"xdotool keydown ctrl",
		"xdotool keyup t",
		"xdotool key 7",
		"xdotool key 0x1008ff13",
		"xdotool key U00E9",
		"xdotool key F5",
		"xdotool mousemove_relative -- -30 0",
		"xdotool click 1",
		"xdotool mousedown 3",
		"xdotool click --repeat 2 4",
		"xdotool click --repeat 5 5",
		"xdotool click --repeat 1 7",
	}, r.Commands())
}

func TestNircmdAutomator_Commands(t *testing.T) {
	r := &fakeRunner{}
	auto, err := newAutomator(AutomationNircmd, r, "nircmd.exe")
	require.NoError(t, err)

	require.NoError(t, auto.Key(KeyPlayPause, Click))
	require.NoError(t, auto.Key(KeyWin, Press))
	require.NoError(t, auto.Key(LetterKey('d'), Release))
	require.NoError(t, auto.Key(NumKey(0x41), Click))
	require.NoError(t, auto.MoveRelative(0, 70))
	require.NoError(t, auto.Button(ButtonLeft, Click))
	require.NoError(t, auto.Scroll(2, Vertical))

	assert.Equal(t, []string{
		"nircmd.exe sendkey 0xB3 press",
		"nircmd.exe sendkey lwin down",
		"nircmd.exe sendkey d up",
		"nircmd.exe sendkey 0x41 press",
		"nircmd.exe sendmouse move 0 70",
		"nircmd.exe sendmouse left click",
		"nircmd.exe sendmouse wheel -240",
	}, r.Commands())

	assert.Error(t, auto.Scroll(1, Horizontal))
	assert.Error(t, auto.Key(UnicodeKey('€'), Click))
}

func TestAutomator_ExitCodeAndSpawnErrors(t *testing.T) {
	r := &fakeRunner{codes: map[string]int{"xdotool key Escape": 1}}
	auto, err := newAutomator(AutomationXdotool, r, "")
	require.NoError(t, err)

	assert.EqualError(t, auto.Key(KeyEsc, Click), "xdotool key Escape: exit code 1")

	r.runErr = errors.New("executable file not found")
	assert.ErrorIs(t, auto.Key(KeyTab, Click), r.runErr)
}

func TestNewAutomator_UnknownBackend(t *testing.T) {
	_, err := newAutomator("ydotool", &fakeRunner{}, "")
	assert.Error(t, err)
}

func TestPower_Commands(t *testing.T) {
	t.Setenv("USER", "alice")

	tests := []struct {
		goos string
		want []string
	}{
		{goos: "windows", want: []string{
			"shutdown /l",
			"rundll32.exe powrprof.dll,SetSuspendState 0 1 0",
			"shutdown /s /t 0",
		}},
		{goos: "linux", want: []string{
			"loginctl terminate-user alice",
			"systemctl suspend",
			"systemctl poweroff",
		}},
	}

	for _, tc := range tests {
		t.Run(tc.goos, func(t *testing.T) {
			r := &fakeRunner{}
			p, err := newPower(r, tc.goos)
			require.NoError(t, err)

			require.NoError(t, p.LogOff())
			require.NoError(t, p.Suspend())
			require.NoError(t, p.PowerOff())
			assert.Equal(t, tc.want, r.Commands())
		})
	}
}

func TestPower_UnsupportedOS(t *testing.T) {
	_, err := newPower(&fakeRunner{}, "plan9")
	require.Error(t, err)

	p := unsupportedPower{err: err}
	assert.ErrorIs(t, p.Suspend(), err)
}

func TestPower_LogOffFallsBackToProcessOwner(t *testing.T) {
	t.Setenv("USER", "")
	prev := currentUser
	t.Cleanup(func() { currentUser = prev })

	currentUser = func() (*user.User, error) { return &user.User{Username: "bob"}, nil }
	r := &fakeRunner{}
	p, err := newPower(r, "linux")
	require.NoError(t, err)
	require.NoError(t, p.LogOff())
	assert.Equal(t, []string{"loginctl terminate-user bob"}, r.Commands())

	currentUser = func() (*user.User, error) { return nil, errors.New("unknown userid 1000") }
	_, err = newPower(&fakeRunner{}, "linux")
	assert.ErrorContains(t, err, "resolve user for logoff")

	currentUser = func() (*user.User, error) { return &user.User{}, nil }
	_, err = newPower(&fakeRunner{}, "linux")
	assert.Error(t, err)

	// Windows logoff does not need a user name.
	_, err = newPower(&fakeRunner{}, "windows")
	assert.NoError(t, err)
}

func TestPower_FailingCommand(t *testing.T) {
	t.Setenv("USER", "alice")
	r := &fakeRunner{codes: map[string]int{"systemctl suspend": 1}}
	p, err := newPower(r, "linux")
	require.NoError(t, err)

	assert.Error(t, p.Suspend())
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com", normalizeURL("example.com"))
	assert.Equal(t, "https://example.com/a", normalizeURL("  https://example.com/a "))
	assert.Equal(t, "http://router.local", normalizeURL("http://router.local"))
}
