// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Package lcepoll is an event-driven TCP server runtime.
//
// A master loop accepts connections and hands each one to one of a fixed set of
// worker loops. Every worker owns an epoll reactor with one-shot timers and runs on
// its own OS thread. The application supplies two hooks: AcceptHandler decides
// whether to keep a new connection and may pin it to a worker, ReadHandler is called
// on the owning worker each time the connection becomes readable.
//
//	svr, err := lcepoll.NewServer(lcepoll.Config{Port: 8888, Workers: 4, MaxConnections: 200})
//	if err != nil {
//		// handle error
//	}
//	svr.OnAccept(func(c lcepoll.Conn) bool { return true })
//	svr.OnRead(func(c lcepoll.Conn) bool {
//		buf := make([]byte, 1)
//		return c.ReadFull(buf, 1) == nil && c.Writev(0, buf) == nil
//	})
//	if err := svr.Start(); err != nil {
//		// handle error
//	}
//	defer svr.Destroy()
//	defer svr.Stop()
package lcepoll

import (
	"fmt"
	"net"
	"time"

	"github.com/ysyzqq/lcepoll/pkg/netpoll"
)

// AcceptHandler is invoked on the master loop for every accepted connection.
// Returning false closes the connection.
type AcceptHandler func(c Conn) bool

// ReadHandler is invoked on the owning worker whenever c is readable.
// Returning false closes the connection.
//
// Readiness is level-triggered: data left unread triggers another call. State that
// must survive between calls belongs in the connection context.
type ReadHandler func(c Conn) bool

// Assignment selects the worker a connection is registered with.
// The zero value is Auto.
type Assignment struct {
	fixed  bool
	worker int
}

// Auto lets the server pick a worker by round robin.
var Auto = Assignment{}

// Fixed pins a connection to worker i for its whole life.
func Fixed(i int) Assignment {
	return Assignment{fixed: true, worker: i}
}

// Worker returns the pinned worker index and whether the assignment is Fixed.
func (a Assignment) Worker() (int, bool) {
	return a.worker, a.fixed
}

func (a Assignment) String() string {
	if a.fixed {
		return fmt.Sprintf("fixed(%d)", a.worker)
	}
	return "auto"
}

// Conn is a connection handed to the hooks.
//
// A Conn is only valid inside the hooks; once a hook returns false the server reuses
// its slot for the next connection.
type Conn interface {
	// Fd returns the socket descriptor.
	Fd() int
	// Slot returns the connection's slot id in the server's pool.
	Slot() int

	// RemoteAddr is the peer address.
	RemoteAddr() net.Addr
	// LocalAddr is the listening address.
	LocalAddr() net.Addr
	// PeerIP is the peer IP address.
	PeerIP() net.IP
	// PeerPort is the peer port.
	PeerPort() int

	// Context returns the user-defined context.
	Context() interface{}
	// SetContext sets the user-defined context.
	SetContext(ctx interface{})

	// Assignment returns the worker assignment requested for the connection.
	Assignment() Assignment
	// SetAssignment pins the connection to a worker. Only honored from AcceptHandler.
	SetAssignment(a Assignment)
	// Worker returns the index of the worker owning the connection, -1 before registration.
	Worker() int
	// Poller returns the owning worker's reactor for scheduling timers from
	// ReadHandler, nil before registration.
	Poller() *netpoll.Poller

	// Read performs a single read(2) on the socket.
	Read(p []byte) (int, error)
	// Write performs a single write(2) on the socket.
	Write(p []byte) (int, error)
	// ReadFull reads exactly len(buf) bytes, retrying EAGAIN up to retries times.
	ReadFull(buf []byte, retries uint32) error
	// Writev writes bufs as one message, retrying EAGAIN up to retries times.
	Writev(retries uint32, bufs ...[]byte) error

	// SetNoDelay controls TCP_NODELAY.
	SetNoDelay(noDelay bool) error
	// SetKeepAlive enables keepalive probing after d of idleness, zero disables it.
	SetKeepAlive(d time.Duration) error
	// SetReadTimeout bounds blocking reads; a timed out read counts as would-block.
	SetReadTimeout(d time.Duration) error
	// SetWriteTimeout bounds blocking writes.
	SetWriteTimeout(d time.Duration) error
}
