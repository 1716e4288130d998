package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseKey(t *testing.T) {
	k, err := ParseKey("Ctrl")
	require.NoError(t, err)
	assert.Equal(t, KeyCtrl, k)

	k, err = ParseKey("a")
	require.NoError(t, err)
	assert.Equal(t, LetterKey('a'), k)

	k, err = ParseKey("é")
	require.NoError(t, err)
	r, ok := k.Char()
	require.True(t, ok)
	assert.Equal(t, 'é', r)

	_, err = ParseKey("hyper")
	assert.Error(t, err)
}

func TestKey_ResolvedDigits(t *testing.T) {
	assert.Equal(t, "5", NumKey(5).Resolved().Name())

	n, ok := NumKey(42).Resolved().Num()
	assert.True(t, ok)
	assert.EqualValues(t, 42, n)
}

func TestBinds_YAMLForms(t *testing.T) {
	src := `
- id: one
  code: "0x20DF10EF"
  action: keyboard_press
  keys: [ctrl, shift, t, 113, "ü"]
- id: two
  code: "0x20DF40BF"
  action: browser_open
  url: example.com
  repeat: true
- id: three
  code: "0x20DF10EF"
  action: media_volume_up
  repeat: true
`
	var binds []Bind
	require.NoError(t, yaml.Unmarshal([]byte(src), &binds))
	require.Len(t, binds, 3)

	for _, b := range binds {
		assert.NoError(t, b.Validate(), b.ID)
	}

	assert.Equal(t, "keyboard_press(ctrl+shift+t+#113+ü)", binds[0].Action.String())
	assert.Equal(t, "browser_open(example.com)", binds[1].Action.String())
	assert.True(t, binds[1].Repeat)

	out, err := yaml.Marshal(binds[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), "- 113\n")

	matched := matchingBinds(binds, "0x20DF10EF")
	require.Len(t, matched, 2)
	assert.Equal(t, "one", matched[0].ID)
	assert.Equal(t, "three", matched[1].ID)
}

func TestBind_JSONWireForm(t *testing.T) {
	b := Bind{ID: "x", Code: "0x1", Action: KeyboardPress(KeyAlt, NumKey(300)), Repeat: true}

	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","code":"0x1","action":"keyboard_press","keys":["alt",300],"repeat":true}`, string(out))

	var back Bind
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, b, back)
}

func TestBind_Validate(t *testing.T) {
	tests := []struct {
		name string
		bind Bind
		ok   bool
	}{
		{name: "default", bind: DefaultBind(), ok: true},
		{name: "missing id", bind: Bind{Code: "0x1", Action: Action{Kind: ActionMediaStop}}},
		{name: "bad code", bind: NewBind("20DF", Action{Kind: ActionMediaStop}, false)},
		{name: "repeat sentinel", bind: NewBind(repeatCode, Action{Kind: ActionMediaStop}, false)},
		{name: "unknown action", bind: NewBind("0x1", Action{Kind: "media_rewind"}, false)},
		{name: "keyboard without keys", bind: NewBind("0x1", Action{Kind: ActionKeyboardPress}, false)},
		{name: "browser without url", bind: NewBind("0x1", Action{Kind: ActionBrowserOpen}, false)},
		{name: "keys on media action", bind: NewBind("0x1", Action{Kind: ActionMediaStop, Keys: []Key{KeyEsc}}, false)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.bind.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestActionKind_Domain(t *testing.T) {
	for _, k := range actionKinds {
		switch k.Domain() {
		case DomainMedia, DomainKeyboard, DomainMouse, DomainBrowser, DomainWindows:
		default:
			t.Fatalf("action %s has unknown domain %q", k, k.Domain())
		}
	}
	assert.False(t, ActionKind("media_rewind").Known())
}
