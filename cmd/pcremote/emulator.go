package main

import (
	"errors"
	"fmt"
	"sync"
)

// ============================================================================
// Device Emulation
// ============================================================================
// Keyboard and Mouse are thin wrappers around one shared Automator. Every call
// takes the emulator lock for its own duration only, so concurrent callers
// serialize on the OS automation state instead of interleaving.
// ============================================================================

// Direction selects press, release or a full click.
type Direction uint8

const (
	Click Direction = iota
	Press
	Release
)

func (d Direction) String() string {
	switch d {
	case Press:
		return "press"
	case Release:
		return "release"
	default:
		return "click"
	}
}

// MouseButton names a pointer button.
type MouseButton string

const (
	ButtonLeft  MouseButton = "left"
	ButtonRight MouseButton = "right"
)

// Axis selects the scroll axis.
type Axis uint8

const (
	Vertical Axis = iota
	Horizontal
)

// Automator is the OS automation capability. Positive deltas move right/down and
// scroll right/down.
type Automator interface {
	Key(k Key, dir Direction) error
	MoveRelative(dx, dy int) error
	Button(b MouseButton, dir Direction) error
	Scroll(delta int, axis Axis) error
}

// Emulator owns the shared Automator.
type Emulator struct {
	mu   sync.Mutex
	auto Automator
}

func NewEmulator(auto Automator) *Emulator {
	return &Emulator{auto: auto}
}

func (e *Emulator) Keyboard() Keyboard { return Keyboard{emu: e} }
func (e *Emulator) Mouse() Mouse       { return Mouse{emu: e} }

func (e *Emulator) locked(fn func(Automator) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.auto)
}

func pressDirection(hold bool) Direction {
	if hold {
		return Press
	}
	return Click
}

// Keyboard emulates key presses.
type Keyboard struct {
	emu *Emulator
}

// Press clicks k, or presses it down when hold is set.
func (kb Keyboard) Press(k Key, hold bool) error {
	return kb.emu.locked(func(a Automator) error {
		return a.Key(k, pressDirection(hold))
	})
}

func (kb Keyboard) Release(k Key) error {
	return kb.emu.locked(func(a Automator) error {
		return a.Key(k, Release)
	})
}

// PressAll presses keys in order, stopping at the first failure.
func (kb Keyboard) PressAll(keys []Key, hold bool) error {
	return kb.emu.locked(func(a Automator) error {
		for _, k := range keys {
			if err := a.Key(k, pressDirection(hold)); err != nil {
				return fmt.Errorf("press %s: %w", k, err)
			}
		}
		return nil
	})
}

// ReleaseAll releases keys in order. Every key is attempted even if an earlier one fails.
func (kb Keyboard) ReleaseAll(keys []Key) error {
	return kb.emu.locked(func(a Automator) error {
		var errs []error
		for _, k := range keys {
			if err := a.Key(k, Release); err != nil {
				errs = append(errs, fmt.Errorf("release %s: %w", k, err))
			}
		}
		return errors.Join(errs...)
	})
}

// Mouse emulates pointer motion, buttons and the wheel.
type Mouse struct {
	emu *Emulator
}

func (m Mouse) MoveX(dx int) error {
	return m.emu.locked(func(a Automator) error { return a.MoveRelative(dx, 0) })
}

func (m Mouse) MoveY(dy int) error {
	return m.emu.locked(func(a Automator) error { return a.MoveRelative(0, dy) })
}

func (m Mouse) PressLeft(hold bool) error {
	return m.emu.locked(func(a Automator) error { return a.Button(ButtonLeft, pressDirection(hold)) })
}

func (m Mouse) ReleaseLeft() error {
	return m.emu.locked(func(a Automator) error { return a.Button(ButtonLeft, Release) })
}

func (m Mouse) PressRight(hold bool) error {
	return m.emu.locked(func(a Automator) error { return a.Button(ButtonRight, pressDirection(hold)) })
}

func (m Mouse) ReleaseRight() error {
	return m.emu.locked(func(a Automator) error { return a.Button(ButtonRight, Release) })
}

func (m Mouse) ScrollX(n int) error {
	return m.emu.locked(func(a Automator) error { return a.Scroll(n, Horizontal) })
}

func (m Mouse) ScrollY(n int) error {
	return m.emu.locked(func(a Automator) error { return a.Scroll(n, Vertical) })
}
