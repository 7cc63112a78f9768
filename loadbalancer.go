// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package lcepoll

import "github.com/pkg/errors"

// loadBalancer picks the worker loop for a new connection. Only the master loop
// calls resolve and commit, so implementations need no locking.
type loadBalancer interface {
	register(el *eventloop)
	// resolve returns the loop a connection with assignment a goes to.
	resolve(a Assignment) (*eventloop, error)
	// commit is called after a successful registration on the resolved loop.
	commit(a Assignment)
	iterate(f func(i int, el *eventloop) bool)
	len() int
}

// roundRobinLoadBalancer cycles through the loops, skipping pinned connections.
type roundRobinLoadBalancer struct {
	nextLoopIndex int
	eventLoops    []*eventloop
	size          int
}

func (lb *roundRobinLoadBalancer) register(el *eventloop) {
	el.idx = lb.size
	lb.eventLoops = append(lb.eventLoops, el)
	lb.size++
}

func (lb *roundRobinLoadBalancer) resolve(a Assignment) (*eventloop, error) {
	if lb.size == 0 {
		return nil, errors.Wrap(ErrInvalidWorker, "no worker loops")
	}
	if i, fixed := a.Worker(); fixed {
		if i < 0 || i >= lb.size {
			return nil, errors.Wrapf(ErrInvalidWorker, "worker %d of %d", i, lb.size)
		}
		return lb.eventLoops[i], nil
	}
	return lb.eventLoops[lb.nextLoopIndex], nil
}

func (lb *roundRobinLoadBalancer) commit(a Assignment) {
	if _, fixed := a.Worker(); fixed {
		return
	}
	if lb.nextLoopIndex++; lb.nextLoopIndex >= lb.size {
		lb.nextLoopIndex = 0
	}
}

func (lb *roundRobinLoadBalancer) iterate(f func(int, *eventloop) bool) {
	for i, el := range lb.eventLoops {
		if !f(i, el) {
			break
		}
	}
}

func (lb *roundRobinLoadBalancer) len() int {
	return lb.size
}
