// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package lcepoll

import (
	"net"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/ysyzqq/lcepoll/internal/socket"
)

type listener struct {
	fd        int
	once      sync.Once
	lnaddr    net.Addr
	addr      string
	port      int
	reusePort bool
}

func newListener(addr string, port int, reusePort bool) *listener {
	return &listener{fd: -1, addr: addr, port: port, reusePort: reusePort}
}

// open creates the non-blocking listening socket. Failures match both ErrBind and
// the underlying socket error.
func (ln *listener) open() error {
	fd, lnaddr, err := socket.Listen(ln.addr, ln.port, ln.reusePort)
	if err != nil {
		return multierr.Append(ErrBind, errors.Wrapf(err, "%s:%d", ln.addr, ln.port))
	}
	ln.fd, ln.lnaddr = fd, lnaddr
	return nil
}

func (ln *listener) close() (err error) {
	ln.once.Do(func() {
		if ln.fd >= 0 {
			err = os.NewSyscallError("close", unix.Close(ln.fd))
		}
	})
	return
}
