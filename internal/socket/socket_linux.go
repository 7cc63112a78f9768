// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Package socket holds the raw socket helpers the server is built on: the listening
// socket factory, retrying readers and writers, and socket options.
package socket

import (
	"net"
	"os"

	"github.com/libp2p/go-reuseport"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ListenBacklog is the backlog handed to listen(2).
const ListenBacklog = 20

// ErrUnsupportedAddress is returned for addresses that are neither IPv4 nor IPv6.
var ErrUnsupportedAddress = errors.New("socket: unsupported address")

// Listen creates a non-blocking TCP listening socket bound to addr:port.
//
// An empty addr, or "any", binds every IPv4 interface. The returned net.Addr is the
// bound address as reported by the kernel, so port 0 yields the chosen port.
func Listen(addr string, port int, reusePort bool) (fd int, lnaddr net.Addr, err error) {
	sa, family, err := resolveSockaddr(addr, port)
	if err != nil {
		return -1, nil, err
	}

	if fd, err = unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP); err != nil {
		return -1, nil, os.NewSyscallError("socket", err)
	}
	defer func() {
		if err != nil {
			_ = unix.Close(fd)
			fd = -1
		}
	}()

	if err = os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)); err != nil {
		return
	}

	if reusePort {
		if !reuseport.Available() {
			err = errors.New("socket: SO_REUSEPORT is not available")
			return
		}
		if err = os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)); err != nil {
			return
		}
	}

	if err = os.NewSyscallError("bind", unix.Bind(fd, sa)); err != nil {
		return
	}

	if err = os.NewSyscallError("listen", unix.Listen(fd, ListenBacklog)); err != nil {
		return
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		err = os.NewSyscallError("getsockname", err)
		return
	}
	lnaddr = SockaddrToTCPAddr(bound)
	return
}

func resolveSockaddr(addr string, port int) (unix.Sockaddr, int, error) {
	if port < 0 || port > 65535 {
		return nil, 0, errors.Wrapf(ErrUnsupportedAddress, "port %d", port)
	}
	if addr == "" || addr == "any" {
		return &unix.SockaddrInet4{Port: port}, unix.AF_INET, nil
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, 0, errors.Wrapf(ErrUnsupportedAddress, "%q", addr)
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa4 := &unix.SockaddrInet4{Port: port}
		copy(sa4.Addr[:], ip4)
		return sa4, unix.AF_INET, nil
	}
	sa6 := &unix.SockaddrInet6{Port: port}
	copy(sa6.Addr[:], ip.To16())
	return sa6, unix.AF_INET6, nil
}

// SockaddrToTCPAddr converts a unix.Sockaddr to a *net.TCPAddr, nil for other families.
func SockaddrToTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, sa.Addr[:])
		var zone string
		if sa.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(sa.ZoneId)); err == nil {
				zone = ifi.Name
			}
		}
		return &net.TCPAddr{IP: ip, Port: sa.Port, Zone: zone}
	}
	return nil
}
