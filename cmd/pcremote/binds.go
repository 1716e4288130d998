package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Bind maps a remote code to an action. Several binds may share a code; all of them run.
type Bind struct {
	ID     string `yaml:"id" json:"id"`
	Code   string `yaml:"code" json:"code"`
	Action `yaml:",inline"`
	Repeat bool `yaml:"repeat" json:"repeat"`
}

// NewBind returns a bind with a freshly generated id.
func NewBind(code string, action Action, repeat bool) Bind {
	return Bind{
		ID:     uuid.NewString(),
		Code:   code,
		Action: action,
		Repeat: repeat,
	}
}

// DefaultBind is the placeholder bind a new config starts with.
func DefaultBind() Bind {
	return NewBind("0xFFFFFF", Action{Kind: ActionMediaPlayPause}, false)
}

// Validate checks the code format and the action payload.
func (b Bind) Validate() error {
	if b.ID == "" {
		return errors.New("id must not be empty")
	}
	if err := validateRemoteCode(b.Code); err != nil {
		return err
	}
	if b.Code == repeatCode {
		return fmt.Errorf("code %s is reserved for repeats", repeatCode)
	}
	if err := b.Action.Validate(); err != nil {
		return fmt.Errorf("action: %w", err)
	}
	return nil
}

func validateRemoteCode(code string) error {
	if !strings.HasPrefix(code, remoteCodePrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidRemoteCode, code)
	}
	return nil
}

// matchingBinds returns the binds for code, in table order.
func matchingBinds(binds []Bind, code string) []Bind {
	var out []Bind
	for _, b := range binds {
		if b.Code == code {
			out = append(out, b)
		}
	}
	return out
}
