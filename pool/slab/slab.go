// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package slab implements a fixed-capacity object pool with O(1) allocate and free.
//
// Objects live in one backing array allocated up front and are addressed by index.
// Free slots form an intrusive list threaded through an index array: freeobj[i] holds
// the index of the next free slot and freeIdx points at the first one. A pool is not
// safe for concurrent use; callers serialize Alloc and Free themselves.
package slab

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrExhausted is returned by Alloc when every slot is in use.
var ErrExhausted = errors.New("slab: pool exhausted")

// Object is one slot of a Pool. Value is the payload handed to the caller.
type Object[T any] struct {
	pool  *Pool[T]
	idx   int
	inUse bool

	Value T
}

// Index returns the slot id of the object.
func (o *Object[T]) Index() int {
	return o.idx
}

// Pool is a fixed-capacity slab of T.
type Pool[T any] struct {
	num     int
	freeIdx int
	freeobj []int
	objs    []Object[T]
	inUse   int
}

// New creates a pool holding capacity objects.
func New[T any](capacity int) (*Pool[T], error) {
	if capacity <= 0 {
		return nil, errors.Errorf("slab: invalid capacity %d", capacity)
	}
	p := &Pool[T]{
		num:     capacity,
		freeobj: make([]int, capacity),
		objs:    make([]Object[T], capacity),
	}
	for i := 0; i < capacity; i++ {
		p.freeobj[i] = i + 1
		p.objs[i].pool = p
		p.objs[i].idx = i
	}
	return p, nil
}

// Alloc pops the first free slot. The returned Value is zeroed.
func (p *Pool[T]) Alloc() (*Object[T], error) {
	if p.freeIdx == p.num {
		return nil, ErrExhausted
	}
	idx := p.freeIdx
	p.freeIdx = p.freeobj[idx]

	o := &p.objs[idx]
	var zero T
	o.Value = zero
	o.inUse = true
	p.inUse++
	return o, nil
}

// Free pushes o back onto the head of the free list.
//
// Freeing an object that belongs to another pool, or one that is not allocated,
// is a programmer error and panics.
func (p *Pool[T]) Free(o *Object[T]) {
	if o == nil || o.pool != p {
		panic("slab: freeing object not owned by this pool")
	}
	if !o.inUse {
		panic(fmt.Sprintf("slab: double free of slot %d", o.idx))
	}
	o.inUse = false
	p.freeobj[o.idx] = p.freeIdx
	p.freeIdx = o.idx
	p.inUse--
}

// At returns the object stored in slot i, allocated or not.
func (p *Pool[T]) At(i int) *Object[T] {
	return &p.objs[i]
}

// Cap returns the capacity of the pool.
func (p *Pool[T]) Cap() int {
	return p.num
}

// InUse returns the number of allocated objects.
func (p *Pool[T]) InUse() int {
	return p.inUse
}

// Each calls fn for every allocated object in slot order.
func (p *Pool[T]) Each(fn func(o *Object[T])) {
	for i := range p.objs {
		if p.objs[i].inUse {
			fn(&p.objs[i])
		}
	}
}
