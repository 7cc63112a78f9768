// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package lcepoll

import (
	"net"
	"os"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/ysyzqq/lcepoll/pkg/logging"
	"github.com/ysyzqq/lcepoll/pkg/netpoll"
	"github.com/ysyzqq/lcepoll/pool/slab"
)

const (
	stateCreated int32 = iota
	stateRunning
	stateStopped
)

// Server accepts connections on a master loop and serves them on worker loops.
//
// The lifecycle is NewServer, OnAccept, OnRead, Start, Stop, Destroy, in that order.
// Several servers may run in one process.
type Server struct {
	cfg    Config
	opts   *Options
	logger logging.Logger

	ln         *listener      // the listening socket
	lb         loadBalancer   // worker loops and the round-robin cursor
	workerPool *ants.Pool     // runs the master loop and every worker loop
	mainDone   chan struct{}  // closed when the master loop exits
	mainStart  bool           // master loop was submitted
	metrics    *serverMetrics // counters exposed by WriteMetrics

	onAccept AcceptHandler
	onRead   ReadHandler

	state       atomic.Int32
	stopped     atomic.Bool // observed by the master loop once per poll
	stopOnce    sync.Once
	destroyOnce sync.Once

	connsMu sync.Mutex // guards conns Alloc and Free, never held across a syscall
	conns   *slab.Pool[conn]
}

// NewServer allocates the connection pool and one reactor per worker.
// Nothing is bound until Start.
func NewServer(cfg Config, opts ...Option) (svr *Server, err error) {
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	options := loadOptions(opts...)

	svr = &Server{
		cfg:    cfg,
		opts:   options,
		logger: options.Logger,
		ln:     newListener(cfg.BindAddress, cfg.Port, options.ReusePort),
		lb:     new(roundRobinLoadBalancer),
	}
	defer func() {
		if err != nil {
			logging.Error(svr.release())
			svr = nil
		}
	}()

	if svr.conns, err = slab.New[conn](cfg.MaxConnections); err != nil {
		return
	}

	for i := 0; i < cfg.Workers; i++ {
		var p *netpoll.Poller
		// Room for bursts: twice the connection bound per wait.
		if p, err = netpoll.OpenPoller(cfg.MaxConnections << 1); err != nil {
			svr.logger.Errorf("failed to open poller for worker %d: %v", i, err)
			return
		}
		p.SetLogger(svr.logger)
		svr.lb.register(&eventloop{svr: svr, poller: p, done: make(chan struct{})})
	}

	if svr.workerPool, err = ants.NewPool(cfg.Workers+1,
		ants.WithNonblocking(true),
		ants.WithLogger(logging.Printer{Logger: svr.logger}),
		ants.WithPanicHandler(func(r interface{}) {
			svr.logger.Errorf("loop panicked: %v", r)
		}),
	); err != nil {
		err = errors.Wrap(err, "create loop pool")
		return
	}

	svr.metrics = newServerMetrics(func() float64 { return float64(svr.ActiveConnections()) })
	return svr, nil
}

// OnAccept installs the accept hook.
func (svr *Server) OnAccept(h AcceptHandler) {
	svr.onAccept = h
}

// OnRead installs the read hook.
func (svr *Server) OnRead(h ReadHandler) {
	svr.onRead = h
}

// Start binds the listening socket and launches the master and worker loops.
func (svr *Server) Start() error {
	if svr.onAccept == nil || svr.onRead == nil {
		svr.logger.Errorf("server has no accept or read handler")
		return ErrMissingHandler
	}
	if !svr.state.CompareAndSwap(stateCreated, stateRunning) {
		return ErrServerClosed
	}

	if err := svr.ln.open(); err != nil {
		svr.logger.Errorf("failed to listen: %v", err)
		svr.state.Store(stateCreated)
		return err
	}

	if err := svr.activateReactors(); err != nil {
		svr.logger.Errorf("failed to start loops: %v", err)
		svr.Stop()
		logging.Error(svr.ln.close())
		return err
	}

	svr.logger.Infof("listening on %v with %d workers, max %d connections",
		svr.ln.lnaddr, svr.cfg.Workers, svr.cfg.MaxConnections)
	return nil
}

// Stop signals every loop and waits for them: the master first, then each worker.
// It returns within one poll cycle per loop; no hook runs after it returns.
func (svr *Server) Stop() {
	svr.stopOnce.Do(func() {
		svr.stopped.Store(true)
		if svr.mainStart {
			<-svr.mainDone
		}
		svr.lb.iterate(func(i int, el *eventloop) bool {
			el.poller.Stop()
			if el.started {
				<-el.done
			}
			return true
		})
		svr.state.Store(stateStopped)
		svr.logger.Debugf("server on %v stopped", svr.ln.lnaddr)
	})
}

// Destroy releases every resource of the server, stopping it first if needed.
// Connections still open are closed without invoking any hook.
func (svr *Server) Destroy() (err error) {
	svr.Stop()
	svr.destroyOnce.Do(func() {
		svr.connsMu.Lock()
		svr.conns.Each(func(obj *slab.Object[conn]) {
			err = multierr.Append(err, os.NewSyscallError("close", unix.Close(obj.Value.fd)))
			svr.metrics.closed.Inc()
			svr.conns.Free(obj)
		})
		svr.connsMu.Unlock()
		err = multierr.Append(err, svr.release())
	})
	return
}

// release closes the pollers, the loop pool and the listener.
func (svr *Server) release() (err error) {
	svr.lb.iterate(func(i int, el *eventloop) bool {
		err = multierr.Append(err, el.poller.Close())
		return true
	})
	if svr.workerPool != nil {
		svr.workerPool.Release()
	}
	return multierr.Append(err, svr.ln.close())
}

// Addr returns the bound listening address, nil before Start.
func (svr *Server) Addr() net.Addr {
	return svr.ln.lnaddr
}

// NumWorkers returns the number of worker loops.
func (svr *Server) NumWorkers() int {
	return svr.lb.len()
}

// ActiveConnections returns the number of connections holding a pool slot.
func (svr *Server) ActiveConnections() int {
	svr.connsMu.Lock()
	defer svr.connsMu.Unlock()
	return svr.conns.InUse()
}

// WorkerConnections returns the number of connections registered on worker i.
func (svr *Server) WorkerConnections(i int) int {
	n := 0
	svr.lb.iterate(func(j int, el *eventloop) bool {
		if j == i {
			n = int(el.connCount.Load())
			return false
		}
		return true
	})
	return n
}

func (svr *Server) getConn() (*slab.Object[conn], error) {
	svr.connsMu.Lock()
	defer svr.connsMu.Unlock()
	return svr.conns.Alloc()
}

func (svr *Server) putConn(obj *slab.Object[conn]) {
	svr.connsMu.Lock()
	svr.conns.Free(obj)
	svr.connsMu.Unlock()
}

// closeConn closes the socket of obj and returns its slot to the pool.
func (svr *Server) closeConn(obj *slab.Object[conn]) {
	if err := unix.Close(obj.Value.fd); err != nil {
		svr.logger.Warnf("failed to close fd:%d, error:%v", obj.Value.fd, err)
	}
	svr.putConn(obj)
}
