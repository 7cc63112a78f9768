// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package socket

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var (
	// ErrPeerClosed is returned when the peer closes the stream before the read completes.
	ErrPeerClosed = errors.New("socket: peer closed connection")
	// ErrRetriesExhausted is returned when EAGAIN persists past the retry budget.
	ErrRetriesExhausted = errors.New("socket: would-block retries exhausted")
)

// sysIO is the raw syscall surface used by ReadFull and Writev.
type sysIO interface {
	Read(fd int, p []byte) (int, error)
	Writev(fd int, iovs [][]byte) (int, error)
}

type unixIO struct{}

func (unixIO) Read(fd int, p []byte) (int, error)        { return unix.Read(fd, p) }
func (unixIO) Writev(fd int, iovs [][]byte) (int, error) { return unix.Writev(fd, iovs) }

var sys sysIO = unixIO{}

// ReadFull reads exactly len(buf) bytes from fd.
//
// EINTR is retried unconditionally, EAGAIN up to retries times in total.
func ReadFull(fd int, buf []byte, retries uint32) error {
	return readFull(sys, fd, buf, retries)
}

func readFull(s sysIO, fd int, buf []byte, retries uint32) error {
	for len(buf) > 0 {
		n, err := s.Read(fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				if retries == 0 {
					return ErrRetriesExhausted
				}
				retries--
				continue
			}
			return os.NewSyscallError("read", err)
		}
		if n == 0 {
			return ErrPeerClosed
		}
		buf = buf[n:]
	}
	return nil
}

// Writev writes every segment of bufs to fd as one logical message.
//
// A short write resumes inside whichever segment was partially flushed; the retry
// policy is the same as ReadFull. bufs itself is not modified.
func Writev(fd int, bufs [][]byte, retries uint32) error {
	return writev(sys, fd, bufs, retries)
}

func writev(s sysIO, fd int, bufs [][]byte, retries uint32) error {
	iovs := make([][]byte, 0, len(bufs))
	for _, b := range bufs {
		if len(b) > 0 {
			iovs = append(iovs, b)
		}
	}
	for len(iovs) > 0 {
		n, err := s.Writev(fd, iovs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				if retries == 0 {
					return ErrRetriesExhausted
				}
				retries--
				continue
			}
			return os.NewSyscallError("writev", err)
		}
		iovs = forward(iovs, n)
	}
	return nil
}

// forward drops the first n written bytes from iovs.
func forward(iovs [][]byte, n int) [][]byte {
	for len(iovs) > 0 && n >= len(iovs[0]) {
		n -= len(iovs[0])
		iovs = iovs[1:]
	}
	if len(iovs) > 0 {
		iovs[0] = iovs[0][n:]
	}
	return iovs
}
