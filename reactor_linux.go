// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package lcepoll

import (
	"runtime"

	"github.com/pkg/errors"
)

// activateReactors submits the master loop, then one loop per worker.
// Loops that were submitted are recorded so Stop only waits for those.
func (svr *Server) activateReactors() error {
	svr.mainDone = make(chan struct{})
	if err := svr.workerPool.Submit(svr.activateMainReactor); err != nil {
		return errors.Wrap(err, "spawn master loop")
	}
	svr.mainStart = true

	var err error
	svr.lb.iterate(func(i int, el *eventloop) bool {
		if err = svr.workerPool.Submit(func() { svr.activateSubReactor(el) }); err != nil {
			err = errors.Wrapf(err, "spawn worker loop %d", i)
			return false
		}
		el.started = true
		return true
	})
	return err
}

// activateMainReactor runs the accept loop until the server is stopped.
func (svr *Server) activateMainReactor() {
	defer close(svr.mainDone)
	if svr.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	if err := svr.acceptLoop(); err != nil {
		svr.logger.Errorf("main reactor exits with error: %v", err)
		return
	}
	svr.logger.Debugf("main reactor exits")
}

// activateSubReactor runs one worker's reactor until its poller is stopped.
func (svr *Server) activateSubReactor(el *eventloop) {
	defer close(el.done)
	if svr.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	if err := el.poller.Run(); err != nil {
		svr.logger.Errorf("event-loop:%d exits with error: %v", el.idx, err)
		return
	}
	svr.logger.Debugf("event-loop:%d exits", el.idx)
}
