package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// muteQueries records the queryMute argument of each status call.
type muteQueries struct {
	mu   sync.Mutex
	seen []bool
}

func (q *muteQueries) add(v bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen = append(q.seen, v)
}

func (q *muteQueries) get() []bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]bool(nil), q.seen...)
}

func newTestHTTPServer(t *testing.T, binds []Bind) (*httptest.Server, *Feed, *muteQueries) {
	t.Helper()
	queries := &muteQueries{}
	status := func(queryMute bool) Status {
		queries.add(queryMute)
		return Status{Version: version, MouseMode: true, Binds: len(binds)}
	}
	feed := NewFeed(discardLogger(), func() Status { return status(false) })
	srv := httptest.NewServer(newHTTPMux(feed, status, staticBinds(binds), discardLogger()))
	t.Cleanup(srv.Close)
	return srv, feed, queries
}

func TestHTTPMux_Status(t *testing.T) {
	srv, _, queries := newTestHTTPServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, version, st.Version)
	assert.True(t, st.MouseMode)
	assert.Equal(t, []bool{true}, queries.get())
}

func TestHTTPMux_BindsAndMethods(t *testing.T) {
	binds := []Bind{NewBind("0x10", Action{Kind: ActionMediaPlayPause}, false)}
	srv, _, _ := newTestHTTPServer(t, binds)

	resp, err := http.Get(srv.URL + "/api/binds")
	require.NoError(t, err)
	var got []Bind
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, binds, got)

	resp, err = http.Post(srv.URL+"/api/binds", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStateFeed_InitThenBroadcasts(t *testing.T) {
	srv, feed, _ := newTestHTTPServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	src := make(chan StateBroadcast, 4)
	go RunBroadcaster(ctx, feed, src, discardLogger())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readEnvelope := func() map[string]json.RawMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var env map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	}

	env := readEnvelope()
	assert.JSONEq(t, `"state_init"`, string(env["type"]))
	var st Status
	require.NoError(t, json.Unmarshal(env["data"], &st))
	assert.Equal(t, version, st.Version)

	waitUntil(t, 2*time.Second, func() bool { return feed.Observers() == 1 }, "observer connected")
	src <- BroadcastCodePressed{Code: "0x20DF10EF", At: time.Now()}

	env = readEnvelope()
	assert.JSONEq(t, `"code_pressed"`, string(env["type"]))
	assert.JSONEq(t, `{"code":"0x20DF10EF"}`, string(env["data"]))
}
