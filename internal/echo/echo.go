// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Package echo implements the echo protocols served by lcecho.
package echo

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ysyzqq/lcepoll"
	"github.com/ysyzqq/lcepoll/pkg/logging"
)

// DefaultTimeout bounds blocking socket reads and writes of a connection.
const DefaultTimeout = 5 * time.Second

// ErrUnknownProtocol occurs when a protocol name is not recognized.
var ErrUnknownProtocol = errors.New("echo: unknown protocol")

// Protocol is a pair of server hooks.
type Protocol interface {
	OnAccept(c lcepoll.Conn) bool
	OnRead(c lcepoll.Conn) bool
}

// New returns the protocol registered under name: "line" or "frame".
func New(name string, logger logging.Logger) (Protocol, error) {
	switch name {
	case "line":
		return NewLine(DefaultTimeout, logger), nil
	case "frame":
		return NewFrame(DefaultTimeout, MaxFrameSize, logger), nil
	}
	return nil, errors.Wrapf(ErrUnknownProtocol, "%q", name)
}

// Install sets both hooks of svr from p.
func Install(svr *lcepoll.Server, p Protocol) {
	svr.OnAccept(p.OnAccept)
	svr.OnRead(p.OnRead)
}

// setup applies the per-connection socket options shared by both protocols.
func setup(c lcepoll.Conn, timeout time.Duration, logger logging.Logger) bool {
	if err := c.SetReadTimeout(timeout); err != nil {
		logger.Warnf("set read timeout on %v: %v", c.RemoteAddr(), err)
		return false
	}
	if err := c.SetWriteTimeout(timeout); err != nil {
		logger.Warnf("set write timeout on %v: %v", c.RemoteAddr(), err)
		return false
	}
	if err := c.SetNoDelay(true); err != nil {
		logger.Warnf("set nodelay on %v: %v", c.RemoteAddr(), err)
	}
	return true
}
