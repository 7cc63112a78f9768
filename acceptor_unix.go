// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package lcepoll

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/ysyzqq/lcepoll/internal/socket"
	"github.com/ysyzqq/lcepoll/pool/slab"
)

// acceptPollTimeout is how long, in milliseconds, the master loop blocks before
// checking the stop flag again.
const acceptPollTimeout = 1000

// acceptLoop waits for the listening socket to become readable and accepts.
func (svr *Server) acceptLoop() error {
	pfd := []unix.PollFd{{Fd: int32(svr.ln.fd), Events: unix.POLLIN}}
	for !svr.stopped.Load() {
		pfd[0].Revents = 0
		n, err := unix.Poll(pfd, acceptPollTimeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return os.NewSyscallError("poll", err)
		}
		if n == 0 {
			continue
		}
		svr.acceptNewConnection()
	}
	return nil
}

// acceptNewConnection accepts one connection and hands it to a worker.
func (svr *Server) acceptNewConnection() {
	nfd, sa, err := unix.Accept4(svr.ln.fd, unix.SOCK_CLOEXEC)
	if err != nil {
		switch err {
		case unix.EAGAIN, unix.EINTR, unix.ECONNABORTED:
		default:
			svr.logger.Warnf("accept failed: %v", os.NewSyscallError("accept4", err))
		}
		return
	}

	obj, err := svr.getConn()
	if err != nil {
		svr.metrics.rejected.Inc()
		svr.logger.Warnf("up to max connections (%d), closing fd:%d", svr.cfg.MaxConnections, nfd)
		_ = unix.Close(nfd)
		return
	}

	c := &obj.Value
	c.reset(nfd, obj.Index(), sa, svr.ln.lnaddr)
	svr.applyTCPOptions(c)

	if !svr.invokeAccept(c) {
		svr.metrics.declined.Inc()
		svr.closeConn(obj)
		return
	}
	svr.assignConn(obj)
}

func (svr *Server) applyTCPOptions(c *conn) {
	if svr.opts.TCPNoDelay {
		if err := socket.SetNoDelay(c.fd, true); err != nil {
			svr.logger.Warnf("failed to set TCP_NODELAY on fd:%d: %v", c.fd, err)
		}
	}
	if svr.opts.TCPKeepAlive > 0 {
		if err := c.SetKeepAlive(svr.opts.TCPKeepAlive); err != nil {
			svr.logger.Warnf("failed to set keepalive on fd:%d: %v", c.fd, err)
		}
	}
}

// invokeAccept runs the accept hook; a panic counts as a decline.
func (svr *Server) invokeAccept(c *conn) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			svr.logger.Errorf("accept handler panicked on fd:%d: %v", c.fd, r)
			keep = false
		}
	}()
	return svr.onAccept(c)
}

// assignConn registers the connection with its worker. The round-robin cursor only
// moves once registration has succeeded.
func (svr *Server) assignConn(obj *slab.Object[conn]) {
	c := &obj.Value
	fd, assign := c.fd, c.assign

	el, err := svr.lb.resolve(assign)
	if err == nil {
		err = el.register(c)
	}
	if err != nil {
		svr.metrics.registerFailure.Inc()
		svr.logger.Errorf("failed to register fd:%d (%v): %v", fd, assign, err)
		svr.closeConn(obj)
		return
	}

	svr.lb.commit(assign)
	svr.metrics.accepted.Inc()
}
