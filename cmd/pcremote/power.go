package main

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"runtime"
)

// PowerController ends the session or powers the machine down.
type PowerController interface {
	LogOff() error
	Suspend() error
	PowerOff() error
}

type powerCommand struct {
	name string
	args []string
}

// osPower runs the platform's power commands. Failures are reported, never retried.
type osPower struct {
	runner ToolRunner

	logoff   powerCommand
	suspend  powerCommand
	poweroff powerCommand
}

func newPower(runner ToolRunner, goos string) (*osPower, error) {
	switch goos {
	case "windows":
		return &osPower{
			runner:   runner,
			logoff:   powerCommand{"shutdown", []string{"/l"}},
			suspend:  powerCommand{"rundll32.exe", []string{"powrprof.dll,SetSuspendState", "0", "1", "0"}},
			poweroff: powerCommand{"shutdown", []string{"/s", "/t", "0"}},
		}, nil
	case "linux":
		name, err := sessionUser()
		if err != nil {
			return nil, fmt.Errorf("resolve user for logoff: %w", err)
		}
		return &osPower{
			runner:   runner,
			logoff:   powerCommand{"loginctl", []string{"terminate-user", name}},
			suspend:  powerCommand{"systemctl", []string{"suspend"}},
			poweroff: powerCommand{"systemctl", []string{"poweroff"}},
		}, nil
	default:
		return nil, fmt.Errorf("power control is not supported on %s", goos)
	}
}

var currentUser = user.Current

// sessionUser prefers $USER and falls back to the process owner.
func sessionUser() (string, error) {
	if name := os.Getenv("USER"); name != "" {
		return name, nil
	}
	u, err := currentUser()
	if err != nil {
		return "", err
	}
	if u.Username == "" {
		return "", errors.New("empty user name")
	}
	return u.Username, nil
}

func newDefaultPower(runner ToolRunner) (*osPower, error) {
	return newPower(runner, runtime.GOOS)
}

func (p *osPower) LogOff() error   { return p.run(p.logoff) }
func (p *osPower) Suspend() error  { return p.run(p.suspend) }
func (p *osPower) PowerOff() error { return p.run(p.poweroff) }

func (p *osPower) run(c powerCommand) error {
	return runChecked(p.runner, c.name, c.args...)
}

// unsupportedPower is used where no power commands are known.
type unsupportedPower struct {
	err error
}

func (u unsupportedPower) LogOff() error   { return u.err }
func (u unsupportedPower) Suspend() error  { return u.err }
func (u unsupportedPower) PowerOff() error { return u.err }
