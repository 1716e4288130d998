package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ipcHarness struct {
	h     *ipcHandler
	store *ConfigStore
	tools *MockMediaTools
	auto  *recordingAutomator
	pub   *recordingPublisher
	mode  *ModeFlag
}

func newIPCHarness(t *testing.T) *ipcHarness {
	t.Helper()
	store, _ := newTestStore(t, FlagOverrides{})
	x := &ipcHarness{
		store: store,
		tools: new(MockMediaTools),
		auto:  &recordingAutomator{},
		pub:   &recordingPublisher{},
		mode:  &ModeFlag{},
	}
	media := NewMedia(x.tools, store.DeviceFilter, discardLogger())
	disp := NewDispatcher(DispatcherDeps{
		Binds:   store,
		Emu:     NewEmulator(x.auto),
		Media:   media,
		Mode:    x.mode,
		Power:   &fakePower{},
		Browser: &fakeBrowser{},
		Pub:     x.pub,
		Logger:  discardLogger(),
	})
	listener := NewListener(ListenerDeps{
		Receiver:   store.Receiver,
		Dispatcher: disp,
		Media:      media,
		Pub:        x.pub,
		Logger:     discardLogger(),
	})
	x.h = &ipcHandler{
		listener:   listener,
		dispatcher: disp,
		media:      media,
		store:      store,
		status:     NewStatusReporter(x.mode, listener, media, store),
		pub:        x.pub,
		logger:     discardLogger(),
	}
	return x
}

func ipcReq(t *testing.T, typ string, data any) IPCRequest {
	t.Helper()
	req := IPCRequest{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		req.Data = raw
	}
	return req
}

func TestIPCHandler_BindLifecycle(t *testing.T) {
	x := newIPCHarness(t)

	out, err := x.h.handle(ipcReq(t, ReqAddBind, map[string]any{
		"code":   "0x20DF8877",
		"action": "keyboard_press",
		"keys":   []any{"ctrl", "t"},
	}))
	require.NoError(t, err)
	added := out.(Bind)
	assert.NotEmpty(t, added.ID)

	out, err = x.h.handle(ipcReq(t, ReqListBinds, nil))
	require.NoError(t, err)
	assert.Len(t, out.([]Bind), 2)

	added.Repeat = true
	_, err = x.h.handle(ipcReq(t, ReqUpdateBind, added))
	require.NoError(t, err)

	_, err = x.h.handle(ipcReq(t, ReqRemoveBind, removeBindData{ID: added.ID}))
	require.NoError(t, err)

	_, err = x.h.handle(ipcReq(t, ReqRemoveBind, removeBindData{ID: added.ID}))
	assert.ErrorIs(t, err, ErrBindNotFound)
}

func TestIPCHandler_Errors(t *testing.T) {
	x := newIPCHarness(t)

	_, err := x.h.handle(ipcReq(t, "reboot", nil))
	assert.ErrorContains(t, err, "unknown request type")

	_, err = x.h.handle(ipcReq(t, ReqAddBind, nil))
	assert.ErrorContains(t, err, "missing data")

	_, err = x.h.handle(IPCRequest{Type: ReqPressCode, Data: json.RawMessage(`{"code":`)})
	assert.ErrorContains(t, err, "decode data")

	_, err = x.h.handle(ipcReq(t, ReqPressCode, pressCodeData{Code: "hello"}))
	assert.ErrorIs(t, err, ErrInvalidRemoteCode)
}

func TestIPCHandler_PressCodeQueues(t *testing.T) {
	x := newIPCHarness(t)

	_, err := x.h.handle(ipcReq(t, ReqPressCode, pressCodeData{Code: " 0x20DF10EF "}))
	require.NoError(t, err)

	select {
	case code := <-x.h.listener.inject:
		assert.Equal(t, "0x20DF10EF", code)
	default:
		t.Fatal("code was not queued")
	}
}

func TestIPCHandler_ToggleMouseModeAndStatus(t *testing.T) {
	x := newIPCHarness(t)

	out, err := x.h.handle(ipcReq(t, ReqToggleMouseMode, nil))
	require.NoError(t, err)
	assert.Equal(t, mouseModeData{On: true}, out)
	assert.Equal(t, []string{"mouse_mode_changed"}, x.pub.Types())

	out, err = x.h.handle(ipcReq(t, ReqGetStatus, nil))
	require.NoError(t, err)
	st := out.(Status)
	assert.True(t, st.MouseMode)
	assert.Equal(t, 1, st.Binds)
	assert.Equal(t, StateDisconnected, st.Listener.State)
	// Nothing is active yet, so the mute tool is never asked.
	assert.Nil(t, st.AudioMuted)
	x.tools.AssertNotCalled(t, "GetMute")
}

func TestIPCHandler_RefreshMediaFailure(t *testing.T) {
	x := newIPCHarness(t)
	x.tools.On("ListDevices").Return(nil, errors.New("tool missing")).Once()

	_, err := x.h.handle(ipcReq(t, ReqRefreshMedia, nil))
	assert.Error(t, err)
	assert.Empty(t, x.pub.Types())
	x.tools.AssertExpectations(t)
}

func TestIPCServer_RoundTrip(t *testing.T) {
	x := newIPCHarness(t)
	socket := filepath.Join(t.TempDir(), "pcremote.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runIPCServer(ctx, socket, x.h, discardLogger()) }()

	var conn net.Conn
	waitUntil(t, 2*time.Second, func() bool {
		c, err := net.Dial("unix", socket)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, "IPC socket accepting")
	defer conn.Close()

	reader := bufio.NewReader(conn)
	roundTrip := func(line string) IPCResponse {
		t.Helper()
		_, err := conn.Write([]byte(line + "\n"))
		require.NoError(t, err)
		raw, err := reader.ReadBytes('\n')
		require.NoError(t, err)
		var resp IPCResponse
		require.NoError(t, json.Unmarshal(raw, &resp))
		return resp
	}

	resp := roundTrip(`{"type":"list_binds"}`)
	require.Equal(t, "ok", resp.Status)
	var binds []Bind
	require.NoError(t, json.Unmarshal(resp.Data, &binds))
	require.Len(t, binds, 1)
	assert.Equal(t, "0xFFFFFF", binds[0].Code)

	resp = roundTrip(`not json`)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "parse request")

	resp = roundTrip(`{"type":"press_code","data":{"code":"0x1"}}`)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Data)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("IPC server did not stop")
	}
}
