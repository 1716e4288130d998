package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedPort returns one chunk per Read; an empty chunk is a read timeout.
type chunkedPort struct {
	chunks []string
	closed bool
}

func (p *chunkedPort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, io.EOF
	}
	c := p.chunks[0]
	p.chunks = p.chunks[1:]
	return copy(b, c), nil
}

func (p *chunkedPort) Close() error {
	p.closed = true
	return nil
}

func TestLineReader_SplitsAcrossReads(t *testing.T) {
	port := &chunkedPort{chunks: []string{"0x20D", "", "F10EF\r\n0xFFFF", "FFFF\r\n0x1\n"}}
	r := newLineReader(port)

	var got []string
	for {
		line, ok, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if ok {
			got = append(got, line)
		}
	}

	assert.Equal(t, []string{"0x20DF10EF", repeatCode, "0x1"}, got)
	require.NoError(t, r.Close())
	assert.True(t, port.closed)
}

func TestLineReader_TimeoutIsNotALine(t *testing.T) {
	r := newLineReader(&chunkedPort{chunks: []string{""}})

	line, ok, err := r.ReadLine()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, line)
}

func TestLineReader_UnterminatedNoiseIsRejected(t *testing.T) {
	noise := strings.Repeat("x", maxLineLength)
	r := newLineReader(&chunkedPort{chunks: []string{noise[:200], noise[200:], "y"}})

	_, ok, err := r.ReadLine()
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = r.ReadLine()
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.ReadLine()
	assert.ErrorIs(t, err, ErrInvalidRemoteCode)
	assert.False(t, ok)
	assert.Empty(t, r.pending)
}

func TestSerialPortName(t *testing.T) {
	assert.Equal(t, "/dev/ttyACM0", serialPortName(ReceiverConfig{Device: "/dev/ttyACM0", Port: 4}))
	assert.Equal(t, "/dev/rfcomm4", serialPortName(ReceiverConfig{PortTemplate: "/dev/rfcomm%d", Port: 4}))
	assert.Equal(t, "COM8", fmtPort(defaultPortTemplate("windows"), 8))
	assert.Equal(t, "/dev/ttyUSB0", fmtPort(defaultPortTemplate("linux"), 0))
}

func fmtPort(tmpl string, n int) string {
	return serialPortName(ReceiverConfig{PortTemplate: tmpl, Port: n})
}

func TestOpenerFor(t *testing.T) {
	o, err := openerFor("")
	require.NoError(t, err)
	assert.IsType(t, serialOpener{}, o)

	o, err = openerFor(ReceiverEvdev)
	require.NoError(t, err)
	assert.IsType(t, evdevOpener{}, o)

	_, err = openerFor("bluetooth")
	assert.Error(t, err)
}

func TestReceiverConfig_ReadTimeout(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, ReceiverConfig{}.ReadTimeout())
	assert.Equal(t, 50*time.Millisecond, ReceiverConfig{ReadTimeoutMS: 50}.ReadTimeout())
}

func TestEvdevLine(t *testing.T) {
	tests := []struct {
		name string
		ev   inputEvent
		want string
		ok   bool
	}{
		{name: "press", ev: inputEvent{Type: EV_KEY, Code: 164, Value: evValuePress}, want: "0xA4", ok: true},
		{name: "repeat", ev: inputEvent{Type: EV_KEY, Code: 164, Value: evValueRepeat}, want: repeatCode, ok: true},
		{name: "release", ev: inputEvent{Type: EV_KEY, Code: 164, Value: evValueRelease}},
		{name: "sync", ev: inputEvent{Type: 0, Code: 0, Value: 0}},
		{name: "msc scan", ev: inputEvent{Type: 4, Code: 4, Value: 0x7a}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := evdevLine(tc.ev)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeInputEvents(t *testing.T) {
	events := []inputEvent{
		{Sec: 1, Usec: 2, Type: EV_KEY, Code: 115, Value: evValuePress},
		{Sec: 1, Usec: 3, Type: EV_KEY, Code: 115, Value: evValueRelease},
	}
	var buf bytes.Buffer
	for _, ev := range events {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, ev))
	}
	// A torn trailing event is ignored.
	buf.Write([]byte{1, 2, 3})

	assert.Equal(t, 24, inputEventSize)
	assert.Equal(t, events, decodeInputEvents(buf.Bytes()))
	assert.Empty(t, decodeInputEvents([]byte{1, 2}))
}
