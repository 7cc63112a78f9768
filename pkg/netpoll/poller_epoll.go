// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Package netpoll provides the per-worker reactor: an epoll instance combined with a
// sorted list of one-shot timers.
//
// A Poller is driven by exactly one goroutine calling Run. Callbacks for ready file
// descriptors and expired timers all execute on that goroutine, one at a time.
// Register, Unregister and Stop may be called from other goroutines; timers may not.
package netpoll

import (
	"container/list"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/ysyzqq/lcepoll/pkg/logging"
)

// DefaultPollTimeout caps every epoll_wait call, bounding how long Stop takes to be noticed.
const DefaultPollTimeout = 1000 * time.Millisecond

// IOEvent is an epoll event mask.
type IOEvent = uint32

const (
	// InEvents is the interest mask for read readiness.
	InEvents IOEvent = unix.EPOLLIN | unix.EPOLLPRI
	// OutEvents is the interest mask for write readiness.
	OutEvents IOEvent = unix.EPOLLOUT
	// ErrEvents is reported on hang-up or socket error.
	ErrEvents IOEvent = unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLRDHUP
)

var (
	// ErrAllocation is returned when the epoll instance cannot be created.
	ErrAllocation = errors.New("netpoll: failed to create poller")
	// ErrRegistration is returned when a descriptor cannot be added to the poller.
	ErrRegistration = errors.New("netpoll: failed to register descriptor")
	// ErrFatalWait is returned by Run when epoll_wait fails with anything but EINTR.
	ErrFatalWait = errors.New("netpoll: epoll_wait failed")
)

// PollEventHandler is invoked on the Run goroutine when a registered fd is ready.
type PollEventHandler func(fd int, ev IOEvent)

// PollAttachment is the registration record of one file descriptor.
type PollAttachment struct {
	FD       int
	Events   IOEvent
	Callback PollEventHandler
}

// Poller is an epoll instance plus its timers.
type Poller struct {
	fd          int
	maxEvents   int
	events      []unix.EpollEvent
	stopped     atomic.Bool
	attachments *xsync.MapOf[int, *PollAttachment]
	timers      *list.List
	firing      bool
	logger      logging.Logger
}

// OpenPoller creates a poller that reports at most maxEvents descriptors per wait.
func OpenPoller(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		return nil, errors.Wrapf(ErrAllocation, "invalid max events %d", maxEvents)
	}
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(ErrAllocation, os.NewSyscallError("epoll_create1", err).Error())
	}
	return &Poller{
		fd:          fd,
		maxEvents:   maxEvents,
		events:      make([]unix.EpollEvent, maxEvents),
		attachments: xsync.NewMapOf[int, *PollAttachment](),
		timers:      list.New(),
		logger:      logging.GetDefaultLogger(),
	}, nil
}

// SetLogger replaces the logger used for best-effort failures.
func (p *Poller) SetLogger(l logging.Logger) {
	if l != nil {
		p.logger = l
	}
}

// Close releases the epoll instance. Run must have returned.
func (p *Poller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.fd))
}

// Stop asks Run to return. It is observed once per loop iteration.
func (p *Poller) Stop() {
	p.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (p *Poller) Stopped() bool {
	return p.stopped.Load()
}

// Register starts watching pa.FD for pa.Events; pa.Events of zero means InEvents.
func (p *Poller) Register(pa *PollAttachment) error {
	if pa.Events == 0 {
		pa.Events = InEvents
	}
	p.attachments.Store(pa.FD, pa)
	ev := unix.EpollEvent{Events: pa.Events, Fd: int32(pa.FD)}
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, pa.FD, &ev); err != nil {
		p.attachments.Delete(pa.FD)
		return errors.Wrapf(ErrRegistration, "fd %d: %v", pa.FD, os.NewSyscallError("epoll_ctl add", err))
	}
	return nil
}

// Unregister stops watching fd. Failures are logged, not returned.
func (p *Poller) Unregister(fd int) {
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		p.logger.Warnf("failed to remove fd:%d from poller, error:%v", fd, os.NewSyscallError("epoll_ctl del", err))
	}
	p.attachments.Delete(fd)
}

// Registered returns the number of descriptors currently watched.
func (p *Poller) Registered() int {
	return p.attachments.Size()
}

// Run waits for events and fires timers until Stop is called.
func (p *Poller) Run() error {
	for !p.stopped.Load() {
		timeout := p.runTimers()

		n, err := unix.EpollWait(p.fd, p.events, waitMillis(timeout))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return errors.Wrap(ErrFatalWait, os.NewSyscallError("epoll_wait", err).Error())
		}

		for i := 0; i < n; i++ {
			ev := &p.events[i]
			pa, ok := p.attachments.Load(int(ev.Fd))
			if !ok {
				continue
			}
			p.dispatch(pa, ev.Events)
		}
	}
	return nil
}

func (p *Poller) dispatch(pa *PollAttachment, ev IOEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("panic in callback of fd:%d: %v", pa.FD, r)
		}
	}()
	pa.Callback(pa.FD, ev)
}

// waitMillis rounds d up to whole milliseconds so a pending timer is never polled early.
func waitMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := int64(math.Ceil(float64(d) / float64(time.Millisecond)))
	if ms > int64(DefaultPollTimeout/time.Millisecond) {
		ms = int64(DefaultPollTimeout / time.Millisecond)
	}
	return int(ms)
}
