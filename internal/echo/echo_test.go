// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package echo

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysyzqq/lcepoll"
)

const ioTimeout = 3 * time.Second

func startServer(t *testing.T, name string) *lcepoll.Server {
	t.Helper()
	p, err := New(name, nil)
	require.NoError(t, err)

	svr, err := lcepoll.NewServer(
		lcepoll.Config{BindAddress: "127.0.0.1", Workers: 2, MaxConnections: 16},
		lcepoll.WithLockOSThread(false),
	)
	require.NoError(t, err)
	Install(svr, p)
	require.NoError(t, svr.Start())
	t.Cleanup(func() { assert.NoError(t, svr.Destroy()) })
	return svr
}

func dial(t *testing.T, svr *lcepoll.Server) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", svr.Addr().String(), ioTimeout)
	require.NoError(t, err)
	require.NoError(t, c.SetDeadline(time.Now().Add(ioTimeout)))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewUnknownProtocol(t *testing.T) {
	_, err := New("morse", nil)
	assert.ErrorIs(t, err, ErrUnknownProtocol)
}

func TestLineEcho(t *testing.T) {
	svr := startServer(t, "line")
	c := dial(t, svr)

	for _, line := range []string{"hello\n", "\n", "a longer line with spaces\n"} {
		_, err := c.Write([]byte(line))
		require.NoError(t, err)
		got := make([]byte, len(line))
		_, err = io.ReadFull(c, got)
		require.NoError(t, err)
		assert.Equal(t, line, string(got))
	}
}

func TestLineEchoSplitWrites(t *testing.T) {
	svr := startServer(t, "line")
	c := dial(t, svr)

	for _, part := range []string{"he", "ll", "o\n"} {
		_, err := c.Write([]byte(part))
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	got := make([]byte, 6)
	_, err := io.ReadFull(c, got)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(got))
}

func TestLineEchoesEachByte(t *testing.T) {
	svr := startServer(t, "line")
	c := dial(t, svr)

	_, err := c.Write([]byte("x"))
	require.NoError(t, err)
	got := make([]byte, 1)
	_, err = io.ReadFull(c, got)
	require.NoError(t, err, "byte must be echoed before the line ends")
	assert.Equal(t, "x", string(got))

	_, err = c.Write([]byte("y\r\n"))
	require.NoError(t, err)
	got = make([]byte, 3)
	_, err = io.ReadFull(c, got)
	require.NoError(t, err)
	assert.Equal(t, "y\r\n", string(got))
}

// stubConn fakes the parts of lcepoll.Conn the line hooks touch.
type stubConn struct {
	lcepoll.Conn
	ctx     interface{}
	readErr error
}

func (s *stubConn) PeerIP() net.IP                      { return net.IPv4(127, 0, 0, 1) }
func (s *stubConn) PeerPort() int                       { return 4242 }
func (s *stubConn) RemoteAddr() net.Addr                { return &net.TCPAddr{IP: s.PeerIP(), Port: s.PeerPort()} }
func (s *stubConn) Worker() int                         { return 0 }
func (s *stubConn) SetReadTimeout(time.Duration) error  { return nil }
func (s *stubConn) SetWriteTimeout(time.Duration) error { return nil }
func (s *stubConn) SetNoDelay(bool) error               { return nil }
func (s *stubConn) Context() interface{}                { return s.ctx }
func (s *stubConn) SetContext(ctx interface{})          { s.ctx = ctx }
func (s *stubConn) ReadFull([]byte, uint32) error       { return s.readErr }

func TestLineHoldsNoStateBetweenCalls(t *testing.T) {
	l := NewLine(DefaultTimeout, nil)
	c := &stubConn{readErr: io.EOF}

	assert.True(t, l.OnAccept(c))
	assert.Nil(t, c.Context(), "accept must not attach a buffer that a failed registration would leak")

	assert.False(t, l.OnRead(c))
	assert.Nil(t, c.Context())
}

func TestLineQuit(t *testing.T) {
	svr := startServer(t, "line")
	c := dial(t, svr)

	_, err := c.Write([]byte("abq"))
	require.NoError(t, err)
	got, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Equal(t, "abq", string(got))
	require.Eventually(t, func() bool { return svr.ActiveConnections() == 0 }, ioTimeout, 10*time.Millisecond)
}

func TestFrameEcho(t *testing.T) {
	svr := startServer(t, "frame")
	fc := NewFrameConn(dial(t, svr))

	rnd := rand.New(rand.NewSource(1))
	for _, size := range []int{1, 17, 4096, 64 << 10, 0} {
		payload := make([]byte, size)
		rnd.Read(payload)
		require.NoError(t, fc.WriteFrame(payload))
		got, err := fc.ReadFrame()
		require.NoError(t, err)
		assert.True(t, bytes.Equal(payload, got), "frame of %d bytes", size)
	}
}

func TestFrameTooLargeClosesConnection(t *testing.T) {
	svr := startServer(t, "frame")
	c := dial(t, svr)

	hdr := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(hdr, MaxFrameSize+1)
	_, err := c.Write(hdr)
	require.NoError(t, err)

	_, err = c.Read(make([]byte, 1))
	assert.Error(t, err)
	require.Eventually(t, func() bool { return svr.ActiveConnections() == 0 }, ioTimeout, 10*time.Millisecond)
}
