// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package lcepoll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBalancer(n int) *roundRobinLoadBalancer {
	lb := new(roundRobinLoadBalancer)
	for i := 0; i < n; i++ {
		lb.register(&eventloop{})
	}
	return lb
}

func TestRoundRobinCyclesOnCommit(t *testing.T) {
	lb := newTestBalancer(3)
	assert.Equal(t, 3, lb.len())

	var got []int
	for i := 0; i < 7; i++ {
		el, err := lb.resolve(Auto)
		require.NoError(t, err)
		got = append(got, el.idx)
		lb.commit(Auto)
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, got)
}

func TestRoundRobinWithoutCommitStays(t *testing.T) {
	lb := newTestBalancer(2)
	for i := 0; i < 3; i++ {
		el, err := lb.resolve(Auto)
		require.NoError(t, err)
		assert.Equal(t, 0, el.idx)
	}
}

func TestFixedAssignmentLeavesCursor(t *testing.T) {
	lb := newTestBalancer(3)
	lb.commit(Auto)

	el, err := lb.resolve(Fixed(2))
	require.NoError(t, err)
	assert.Equal(t, 2, el.idx)
	lb.commit(Fixed(2))

	el, err = lb.resolve(Auto)
	require.NoError(t, err)
	assert.Equal(t, 1, el.idx)
}

func TestFixedAssignmentOutOfRange(t *testing.T) {
	lb := newTestBalancer(2)
	for _, i := range []int{-1, 2, 99} {
		_, err := lb.resolve(Fixed(i))
		assert.ErrorIs(t, err, ErrInvalidWorker, "worker %d", i)
	}

	_, err := new(roundRobinLoadBalancer).resolve(Auto)
	assert.ErrorIs(t, err, ErrInvalidWorker)
}

func TestAssignmentString(t *testing.T) {
	assert.Equal(t, "auto", Auto.String())
	assert.Equal(t, "fixed(3)", Fixed(3).String())

	i, fixed := Fixed(0).Worker()
	assert.True(t, fixed)
	assert.Zero(t, i)
	_, fixed = Assignment{}.Worker()
	assert.False(t, fixed)
}

func TestIterateStopsEarly(t *testing.T) {
	lb := newTestBalancer(4)
	var seen []int
	lb.iterate(func(i int, el *eventloop) bool {
		seen = append(seen, i)
		return i < 1
	})
	assert.Equal(t, []int{0, 1}, seen)
}
