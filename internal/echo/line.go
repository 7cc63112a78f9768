// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package echo

import (
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/ysyzqq/lcepoll"
	"github.com/ysyzqq/lcepoll/pkg/logging"
)

// Line echoes every byte back as soon as it is read and keeps reading until the end
// of the line. A 'q' byte is echoed and closes the connection.
type Line struct {
	Timeout time.Duration
	logger  logging.Logger
}

// NewLine returns the line protocol with the given socket timeout.
func NewLine(timeout time.Duration, logger logging.Logger) *Line {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Line{Timeout: timeout, logger: logger}
}

func (l *Line) OnAccept(c lcepoll.Conn) bool {
	l.logger.Debugf("new connection: %v:%d", c.PeerIP(), c.PeerPort())
	return setup(c, l.Timeout, l.logger)
}

// OnRead serves one line. The pooled buffer only collects the line for logging and
// never outlives the call.
func (l *Line) OnRead(c lcepoll.Conn) bool {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	d := make([]byte, 1)
	for {
		if err := c.ReadFull(d, 1); err != nil {
			l.logger.Debugf("worker %d: read from %v: %v", c.Worker(), c.RemoteAddr(), err)
			return false
		}
		if d[0] != '\r' && d[0] != '\n' {
			_ = buf.WriteByte(d[0])
		}
		if err := c.Writev(1, d); err != nil {
			l.logger.Debugf("worker %d: write to %v: %v", c.Worker(), c.RemoteAddr(), err)
			return false
		}

		switch d[0] {
		case 'q':
			l.logger.Debugf("worker %d: %q, closing", c.Worker(), buf.B)
			return false
		case '\n':
			l.logger.Debugf("worker %d: %q", c.Worker(), buf.B)
			return true
		}
	}
}
