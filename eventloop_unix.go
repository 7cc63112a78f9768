// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package lcepoll

import (
	"go.uber.org/atomic"

	"github.com/ysyzqq/lcepoll/pkg/netpoll"
)

type eventloop struct {
	idx       int             // loop index in the server loops list
	svr       *Server         // server in loop
	poller    *netpoll.Poller // epoll with timers
	connCount atomic.Int32    // number of active connections in event-loop
	done      chan struct{}   // closed when the loop goroutine exits
	started   bool            // loop goroutine was submitted
}

// register adds c to this loop's poller. Called on the master loop.
func (el *eventloop) register(c *conn) error {
	slot := c.slot
	c.loop = el
	c.pa = netpoll.PollAttachment{
		FD:     c.fd,
		Events: netpoll.InEvents,
		Callback: func(int, netpoll.IOEvent) {
			el.loopRead(slot)
		},
	}
	el.connCount.Inc()
	if err := el.poller.Register(&c.pa); err != nil {
		el.connCount.Dec()
		c.loop = nil
		return err
	}
	return nil
}

// loopRead hands a readable connection to the read hook.
func (el *eventloop) loopRead(slot int) {
	obj := el.svr.conns.At(slot)
	if !el.invokeRead(&obj.Value) {
		el.loopCloseConn(slot)
	}
}

// invokeRead runs the read hook; a panic closes the connection.
func (el *eventloop) invokeRead(c *conn) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			el.svr.logger.Errorf("read handler panicked on fd:%d: %v", c.fd, r)
			keep = false
		}
	}()
	return el.svr.onRead(c)
}

// loopCloseConn unregisters, closes and frees the connection in slot.
func (el *eventloop) loopCloseConn(slot int) {
	obj := el.svr.conns.At(slot)
	el.poller.Unregister(obj.Value.fd)
	el.connCount.Dec()
	el.svr.metrics.closed.Inc()
	el.svr.closeConn(obj)
}
