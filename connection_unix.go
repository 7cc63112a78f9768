// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package lcepoll

import (
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ysyzqq/lcepoll/internal/socket"
	"github.com/ysyzqq/lcepoll/pkg/netpoll"
)

// conn lives in the server's slab; it is reset on every allocation.
type conn struct {
	fd         int                    // file descriptor
	slot       int                    // slot id in the connection pool
	sa         unix.Sockaddr          // remote socket address
	remoteAddr *net.TCPAddr           // remote addr
	localAddr  net.Addr               // local addr
	assign     Assignment             // worker requested by the accept hook
	loop       *eventloop             // owning event-loop, nil until registered
	pa         netpoll.PollAttachment // readiness registration record
	ctx        interface{}            // user-defined context
}

func (c *conn) reset(fd, slot int, sa unix.Sockaddr, lnaddr net.Addr) {
	*c = conn{
		fd:         fd,
		slot:       slot,
		sa:         sa,
		remoteAddr: socket.SockaddrToTCPAddr(sa),
		localAddr:  lnaddr,
		assign:     Auto,
	}
}

// ================================= Public APIs of lcepoll.Conn =================================

func (c *conn) Fd() int   { return c.fd }
func (c *conn) Slot() int { return c.slot }

func (c *conn) RemoteAddr() net.Addr {
	if c.remoteAddr == nil {
		return nil
	}
	return c.remoteAddr
}

func (c *conn) LocalAddr() net.Addr { return c.localAddr }

func (c *conn) PeerIP() net.IP {
	if c.remoteAddr == nil {
		return nil
	}
	return c.remoteAddr.IP
}

func (c *conn) PeerPort() int {
	if c.remoteAddr == nil {
		return 0
	}
	return c.remoteAddr.Port
}

func (c *conn) Context() interface{}       { return c.ctx }
func (c *conn) SetContext(ctx interface{}) { c.ctx = ctx }

func (c *conn) Assignment() Assignment     { return c.assign }
func (c *conn) SetAssignment(a Assignment) { c.assign = a }

func (c *conn) Worker() int {
	if c.loop == nil {
		return -1
	}
	return c.loop.idx
}

func (c *conn) Poller() *netpoll.Poller {
	if c.loop == nil {
		return nil
	}
	return c.loop.poller
}

func (c *conn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		return 0, os.NewSyscallError("read", err)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (c *conn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err != nil {
		return 0, os.NewSyscallError("write", err)
	}
	return n, nil
}

func (c *conn) ReadFull(buf []byte, retries uint32) error {
	return socket.ReadFull(c.fd, buf, retries)
}

func (c *conn) Writev(retries uint32, bufs ...[]byte) error {
	return socket.Writev(c.fd, bufs, retries)
}

func (c *conn) SetNoDelay(noDelay bool) error {
	return socket.SetNoDelay(c.fd, noDelay)
}

func (c *conn) SetKeepAlive(d time.Duration) error {
	return socket.SetKeepAlive(c.fd, int(d/time.Second))
}

func (c *conn) SetReadTimeout(d time.Duration) error {
	return socket.SetRecvTimeout(c.fd, d)
}

func (c *conn) SetWriteTimeout(d time.Duration) error {
	return socket.SetSendTimeout(c.fd, d)
}
