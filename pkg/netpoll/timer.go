// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package netpoll

import (
	"container/list"
	"time"
)

// TimerCallback runs on the poller goroutine when a timer expires.
type TimerCallback func(t *Timer)

// Timer is a one-shot timer owned by a Poller.
type Timer struct {
	interval time.Duration
	deadline time.Time
	callback TimerCallback
	elem     *list.Element
	owner    *Poller // poller whose list holds elem

	// Data is opaque user state.
	Data interface{}
}

// NewTimer returns a timer that fires cb interval after it is started.
func NewTimer(interval time.Duration, cb TimerCallback) *Timer {
	t := new(Timer)
	t.Init(interval, cb)
	return t
}

// Init (re)initializes an unarmed timer.
func (t *Timer) Init(interval time.Duration, cb TimerCallback) {
	t.interval = interval
	t.callback = cb
	t.elem = nil
	t.owner = nil
}

// Interval returns the relative interval of the timer.
func (t *Timer) Interval() time.Duration { return t.interval }

// Deadline returns the absolute deadline computed by the last StartTimer.
func (t *Timer) Deadline() time.Time { return t.deadline }

// Armed reports whether the timer is waiting to fire.
func (t *Timer) Armed() bool { return t.elem != nil }

// StartTimer arms t to fire after its interval, then fires every timer already due.
// Starting an armed timer re-arms it with a fresh deadline. A timer armed on another
// poller panics.
func (p *Poller) StartTimer(t *Timer) {
	if t.elem != nil {
		p.unlink(t)
	}
	t.deadline = time.Now().Add(t.interval)

	var at *list.Element
	for e := p.timers.Front(); e != nil; e = e.Next() {
		if e.Value.(*Timer).deadline.After(t.deadline) {
			at = e
			break
		}
	}
	if at != nil {
		t.elem = p.timers.InsertBefore(t, at)
	} else {
		t.elem = p.timers.PushBack(t)
	}
	t.owner = p

	if !p.firing {
		p.runTimers()
	}
}

// CancelTimer disarms t. Cancelling an unarmed timer does nothing; cancelling a timer
// armed on another poller panics.
func (p *Poller) CancelTimer(t *Timer) {
	if t.elem == nil {
		return
	}
	p.unlink(t)
}

func (p *Poller) unlink(t *Timer) {
	if t.owner != p {
		panic("netpoll: timer is armed on another poller")
	}
	p.timers.Remove(t.elem)
	t.elem = nil
	t.owner = nil
}

// PendingTimers returns the number of armed timers.
func (p *Poller) PendingTimers() int {
	return p.timers.Len()
}

// runTimers fires every expired timer in deadline order and returns how long the
// poller may block before the next one is due, capped at DefaultPollTimeout.
func (p *Poller) runTimers() time.Duration {
	p.firing = true
	defer func() { p.firing = false }()

	// Timers re-armed by a callback during this pass get deadlines after now.
	now := time.Now()
	for {
		front := p.timers.Front()
		if front == nil {
			return DefaultPollTimeout
		}
		t := front.Value.(*Timer)
		wait := t.deadline.Sub(now)
		if wait > 0 {
			if wait > DefaultPollTimeout {
				return DefaultPollTimeout
			}
			return wait
		}
		p.unlink(t)
		p.fire(t)
	}
}

func (p *Poller) fire(t *Timer) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("panic in timer callback: %v", r)
		}
	}()
	t.callback(t)
}
