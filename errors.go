// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package lcepoll

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig occurs when the server configuration is rejected.
	ErrInvalidConfig = errors.New("lcepoll: invalid config")
	// ErrMissingHandler occurs when Start is called before both hooks are set.
	ErrMissingHandler = errors.New("lcepoll: accept and read handlers must be set")
	// ErrBind occurs when the listening socket cannot be set up.
	ErrBind = errors.New("lcepoll: failed to set up listening socket")
	// ErrServerClosed occurs when Start is called on a server that already started.
	ErrServerClosed = errors.New("lcepoll: server already started or stopped")
	// ErrInvalidWorker occurs when a connection is pinned to a worker that does not exist.
	ErrInvalidWorker = errors.New("lcepoll: invalid worker index")
)
