package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Key is a logical keyboard key: one of the named keys below, a numeric key code, or a
// single Unicode character for keys outside the named set.
type Key struct {
	kind keyKind
	name string
	num  uint32
	char rune
}

type keyKind uint8

const (
	keyNamed keyKind = iota
	keyNumeric
	keyUnicode
)

// namedKeys is the closed set of named keys, in config spelling.
var namedKeys = map[string]struct{}{}

func named(name string) Key {
	namedKeys[name] = struct{}{}
	return Key{kind: keyNamed, name: name}
}

var (
	KeyEsc       = named("esc")
	KeyTab       = named("tab")
	KeyCapsLock  = named("capslock")
	KeyShift     = named("shift")
	KeyCtrl      = named("ctrl")
	KeyAlt       = named("alt")
	KeyWin       = named("win")
	KeySpace     = named("space")
	KeyEnter     = named("enter")
	KeyBackspace = named("backspace")
	KeyDelete    = named("delete")

	KeyLeft  = named("left")
	KeyRight = named("right")
	KeyUp    = named("up")
	KeyDown  = named("down")

	KeyPlus     = named("plus")
	KeyMinus    = named("minus")
	KeyEqual    = named("equal")
	KeyMultiply = named("multiply")
	KeyDivide   = named("divide")

	KeyPlayPause  = named("play_pause")
	KeyPrevTrack  = named("prev_track")
	KeyNextTrack  = named("next_track")
	KeyStop       = named("stop")
	KeyVolumeUp   = named("volume_up")
	KeyVolumeDown = named("volume_down")
	KeyMute       = named("mute")
)

func init() {
	for c := 'a'; c <= 'z'; c++ {
		named(string(c))
	}
	for c := '0'; c <= '9'; c++ {
		named(string(c))
	}
	for i := 1; i <= 12; i++ {
		named("f" + strconv.Itoa(i))
	}
}

// LetterKey returns the named key for an ASCII letter.
func LetterKey(c rune) Key { return Key{kind: keyNamed, name: strings.ToLower(string(c))} }

// NumKey returns a key identified by a raw numeric code.
func NumKey(n uint32) Key { return Key{kind: keyNumeric, num: n} }

// UnicodeKey returns a key that types the given character.
func UnicodeKey(r rune) Key { return Key{kind: keyUnicode, char: r} }

// ParseKey resolves a config token. Named keys win over the single-character form, so "a"
// is the letter key and "é" is a Unicode key.
func ParseKey(s string) (Key, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	if _, ok := namedKeys[lower]; ok {
		return Key{kind: keyNamed, name: lower}, nil
	}
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		return UnicodeKey(r), nil
	}
	return Key{}, fmt.Errorf("unknown key %q", s)
}

// Resolved maps numeric codes 0-9 onto the digit keys; everything else is returned as is.
func (k Key) Resolved() Key {
	if k.kind == keyNumeric && k.num <= 9 {
		return Key{kind: keyNamed, name: strconv.Itoa(int(k.num))}
	}
	return k
}

// Name returns the config name of a named key, or "" for numeric and Unicode keys.
func (k Key) Name() string {
	if k.kind != keyNamed {
		return ""
	}
	return k.name
}

// Num reports the raw code of a numeric key.
func (k Key) Num() (uint32, bool) { return k.num, k.kind == keyNumeric }

// Char reports the character of a Unicode key.
func (k Key) Char() (rune, bool) { return k.char, k.kind == keyUnicode }

func (k Key) IsZero() bool { return k == Key{} }

func (k Key) String() string {
	switch k.kind {
	case keyNumeric:
		return "#" + strconv.FormatUint(uint64(k.num), 10)
	case keyUnicode:
		return string(k.char)
	default:
		return k.name
	}
}

func (k Key) MarshalYAML() (any, error) {
	if k.kind == keyNumeric {
		return k.num, nil
	}
	return k.String(), nil
}

func (k *Key) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: key must be a scalar", node.Line)
	}
	if node.Tag == "!!int" {
		n, err := strconv.ParseUint(node.Value, 0, 32)
		if err != nil {
			return fmt.Errorf("line %d: key code: %w", node.Line, err)
		}
		*k = NumKey(uint32(n))
		return nil
	}
	parsed, err := ParseKey(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*k = parsed
	return nil
}

func (k Key) MarshalJSON() ([]byte, error) {
	if k.kind == keyNumeric {
		return json.Marshal(k.num)
	}
	return json.Marshal(k.String())
}

func (k *Key) UnmarshalJSON(data []byte) error {
	var n uint32
	if err := json.Unmarshal(data, &n); err == nil {
		*k = NumKey(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("key must be a string or a number: %w", err)
	}
	parsed, err := ParseKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
