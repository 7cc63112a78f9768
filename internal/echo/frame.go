// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package echo

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/smallnest/goframe"

	"github.com/ysyzqq/lcepoll"
	"github.com/ysyzqq/lcepoll/pkg/logging"
)

const (
	// HeaderSize is the length of the big-endian frame length prefix.
	HeaderSize = 4
	// MaxFrameSize bounds the payload of one frame.
	MaxFrameSize = 1 << 20
)

// Frame echoes length-prefixed frames, one frame per read event.
type Frame struct {
	Timeout time.Duration
	MaxSize int
	logger  logging.Logger
}

// NewFrame returns the frame protocol accepting payloads up to maxSize bytes.
func NewFrame(timeout time.Duration, maxSize int, logger logging.Logger) *Frame {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Frame{Timeout: timeout, MaxSize: maxSize, logger: logger}
}

func (f *Frame) OnAccept(c lcepoll.Conn) bool {
	f.logger.Debugf("new connection: %v:%d", c.PeerIP(), c.PeerPort())
	return setup(c, f.Timeout, f.logger)
}

func (f *Frame) OnRead(c lcepoll.Conn) bool {
	hdr := make([]byte, HeaderSize)
	if err := c.ReadFull(hdr, 1); err != nil {
		f.logger.Debugf("worker %d: read header from %v: %v", c.Worker(), c.RemoteAddr(), err)
		return false
	}
	size := binary.BigEndian.Uint32(hdr)
	if int64(size) > int64(f.MaxSize) {
		f.logger.Warnf("frame of %d bytes from %v exceeds %d", size, c.RemoteAddr(), f.MaxSize)
		return false
	}
	if size == 0 {
		return c.Writev(1, hdr) == nil
	}

	payload := make([]byte, size)
	if err := c.ReadFull(payload, 1); err != nil {
		f.logger.Debugf("worker %d: read payload from %v: %v", c.Worker(), c.RemoteAddr(), err)
		return false
	}
	if err := c.Writev(1, hdr, payload); err != nil {
		f.logger.Debugf("worker %d: write to %v: %v", c.Worker(), c.RemoteAddr(), err)
		return false
	}
	return true
}

// NewFrameConn wraps a client connection with the framing used by Frame.
func NewFrameConn(conn net.Conn) goframe.FrameConn {
	enc := goframe.EncoderConfig{
		ByteOrder:                       binary.BigEndian,
		LengthFieldLength:               HeaderSize,
		LengthAdjustment:                0,
		LengthIncludesLengthFieldLength: false,
	}
	dec := goframe.DecoderConfig{
		ByteOrder:           binary.BigEndian,
		LengthFieldOffset:   0,
		LengthFieldLength:   HeaderSize,
		LengthAdjustment:    0,
		InitialBytesToStrip: HeaderSize,
	}
	return goframe.NewLengthFieldBasedFrameConn(enc, dec, conn)
}
