//go:build linux

package netpoll

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firingLog struct {
	mu    sync.Mutex
	order []string
}

func (l *firingLog) cb(name string) TimerCallback {
	return func(*Timer) {
		l.mu.Lock()
		l.order = append(l.order, name)
		l.mu.Unlock()
	}
}

func (l *firingLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

func TestTimersFireInDeadlineOrder(t *testing.T) {
	perms := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {2, 0, 1}}
	intervals := []time.Duration{40 * time.Millisecond, 80 * time.Millisecond, 120 * time.Millisecond}
	names := []string{"d1", "d2", "d3"}

	for _, perm := range perms {
		p, err := OpenPoller(4)
		require.NoError(t, err)

		log := &firingLog{}
		for _, i := range perm {
			p.StartTimer(NewTimer(intervals[i], log.cb(names[i])))
		}
		assert.Equal(t, 3, p.PendingTimers())

		stop := runPoller(t, p)
		require.Eventually(t, func() bool { return len(log.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
		stop()

		assert.Equal(t, names, log.snapshot(), "insertion order %v", perm)
		assert.Zero(t, p.PendingTimers())
		require.NoError(t, p.Close())
	}
}

func TestTimerListStaysSorted(t *testing.T) {
	p, err := OpenPoller(4)
	require.NoError(t, err)
	defer p.Close()

	for _, ms := range []int{500, 100, 300, 200, 400, 100} {
		p.StartTimer(NewTimer(time.Duration(ms)*time.Millisecond, func(*Timer) {}))
	}
	var prev time.Time
	for e := p.timers.Front(); e != nil; e = e.Next() {
		d := e.Value.(*Timer).Deadline()
		assert.False(t, d.Before(prev), "timer list out of order")
		prev = d
	}
}

func TestCancelledTimerNeverFires(t *testing.T) {
	p, err := OpenPoller(4)
	require.NoError(t, err)
	defer p.Close()

	log := &firingLog{}
	victim := NewTimer(50*time.Millisecond, log.cb("victim"))
	p.StartTimer(victim)
	p.StartTimer(NewTimer(150*time.Millisecond, log.cb("witness")))
	require.True(t, victim.Armed())

	p.CancelTimer(victim)
	assert.False(t, victim.Armed())
	p.CancelTimer(victim) // no-op on an unarmed timer

	stop := runPoller(t, p)
	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	stop()
	assert.Equal(t, []string{"witness"}, log.snapshot())
}

func TestStartFiresOverdueTimersImmediately(t *testing.T) {
	p, err := OpenPoller(4)
	require.NoError(t, err)
	defer p.Close()

	log := &firingLog{}

	// Inserted ahead of a pending timer.
	p.StartTimer(NewTimer(time.Hour, log.cb("later")))
	p.StartTimer(NewTimer(0, log.cb("head")))
	assert.Equal(t, []string{"head"}, log.snapshot())

	// Appended after every pending timer: fires as well, no wait iteration needed.
	p2, err := OpenPoller(4)
	require.NoError(t, err)
	defer p2.Close()
	log2 := &firingLog{}
	p2.StartTimer(NewTimer(0, log2.cb("appended")))
	assert.Equal(t, []string{"appended"}, log2.snapshot())
	assert.Zero(t, p2.PendingTimers())
}

func TestTimerCanRearmFromCallback(t *testing.T) {
	p, err := OpenPoller(4)
	require.NoError(t, err)
	defer p.Close()

	var mu sync.Mutex
	count := 0
	tm := NewTimer(20*time.Millisecond, nil)
	tm.Init(20*time.Millisecond, func(self *Timer) {
		mu.Lock()
		count++
		again := count < 3
		mu.Unlock()
		if again {
			p.StartTimer(self)
		}
	})
	p.StartTimer(tm)

	stop := runPoller(t, p)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 3
	}, 2*time.Second, 10*time.Millisecond)
	stop()
	assert.False(t, tm.Armed())
}

func TestTimerShortensWait(t *testing.T) {
	p, err := OpenPoller(4)
	require.NoError(t, err)
	defer p.Close()

	p.StartTimer(NewTimer(30*time.Millisecond, func(*Timer) {}))
	wait := p.runTimers()
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 30*time.Millisecond)

	p2, err := OpenPoller(1)
	require.NoError(t, err)
	defer p2.Close()
	assert.Equal(t, DefaultPollTimeout, p2.runTimers())
	p2.StartTimer(NewTimer(time.Hour, func(*Timer) {}))
	assert.Equal(t, DefaultPollTimeout, p2.runTimers())
}

func TestTimerBelongsToOnePoller(t *testing.T) {
	p, err := OpenPoller(4)
	require.NoError(t, err)
	defer p.Close()
	q, err := OpenPoller(4)
	require.NoError(t, err)
	defer q.Close()

	log := &firingLog{}
	tm := NewTimer(time.Hour, log.cb("q"))
	q.StartTimer(tm)

	assert.Panics(t, func() { p.CancelTimer(tm) })
	assert.Panics(t, func() { p.StartTimer(tm) })
	assert.True(t, tm.Armed())
	assert.Equal(t, 1, q.PendingTimers())
	assert.Zero(t, p.PendingTimers())

	q.CancelTimer(tm)
	assert.False(t, tm.Armed())

	// Once disarmed it may move to another poller.
	p.StartTimer(tm)
	assert.True(t, tm.Armed())
	assert.Equal(t, 1, p.PendingTimers())
	assert.Zero(t, q.PendingTimers())
}
