/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package accept owns a listening socket, runs a pool
// of acceptor workers, hands each accepted connection to a
// core.ConnectionFactory, and tears everything down in a deterministic
// order on Stop.
package accept

import (
	"bufio"
	"context"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	core "github.com/badu/httpcore"
)

// Options configures an Acceptor. Zero values pick the defaults documented
// on each field.
type Options struct {
	// Addr is the listen address, e.g. ":8080". Empty means ":http".
	Addr string

	// Acceptors is the number of goroutines concurrently calling Accept.
	// ≤ 0 defaults to 2×NumCPU.
	Acceptors int

	// TCPKeepAlivePeriod is applied to every accepted *net.TCPConn.
	// ≤ 0 defaults to 3 minutes.
	TCPKeepAlivePeriod time.Duration

	// SoLinger configures SO_LINGER on accepted TCP connections when
	// non-zero; see net.TCPConn.SetLinger.
	SoLinger int

	// StopTimeout bounds how long Stop waits for each registered Graceful
	// component to drain. ≤ 0 means no per-component timeout.
	StopTimeout time.Duration
}

// Acceptor is one connector's listening loop: N workers blocked in Accept,
// each handing what they get to a core.ConnectionFactory (ordinarily a
// detect.Detector) and then to that Connection's own Serve loop.
type Acceptor struct {
	opts    Options
	srv     *core.Server
	factory core.ConnectionFactory
	stats   *Stats
	log     *logrus.Entry

	listener net.Listener
	cancel   context.CancelFunc

	mu    sync.Mutex
	conns map[core.Connection]connTracker

	graceful []core.Graceful

	wg sync.WaitGroup
}

// New builds an Acceptor around srv, using factory to turn accepted sockets
// into Connections. Call Start to begin accepting.
func New(srv *core.Server, factory core.ConnectionFactory, opts Options) *Acceptor {
	if opts.Acceptors <= 0 {
		opts.Acceptors = 2 * runtime.NumCPU()
	}
	if opts.TCPKeepAlivePeriod <= 0 {
		opts.TCPKeepAlivePeriod = 3 * time.Minute
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":http"
	}
	opts.Addr = addr

	log := srv.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Acceptor{
		opts:    opts,
		srv:     srv,
		factory: factory,
		stats:   NewStats(addr),
		log:     log.WithField("connector", addr),
		conns:   make(map[core.Connection]connTracker),
	}
}

// Stats exposes the acceptor's Prometheus collectors, for registration
// against a caller-owned *prometheus.Registry.
func (a *Acceptor) Stats() *Stats { return a.stats }

// AddGraceful registers a component Stop must wait to drain. Stop signals
// the registered components in the order they were added here.
func (a *Acceptor) AddGraceful(g core.Graceful) {
	a.graceful = append(a.graceful, g)
}

// Addr returns the bound listen address. Only meaningful after Start.
func (a *Acceptor) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Start binds the listener and launches the acceptor workers. It returns
// once the listener is bound — fail-fast if that can't happen;
// the workers themselves can never fail to be scheduled since they're
// plain goroutines.
func (a *Acceptor) Start() error {
	ln, err := net.Listen("tcp", a.opts.Addr)
	if err != nil {
		return err
	}
	if tcpLn, ok := ln.(*net.TCPListener); ok {
		ln = keepAliveListener{TCPListener: tcpLn, period: a.opts.TCPKeepAlivePeriod}
	}
	a.listener = ln

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	for i := 0; i < a.opts.Acceptors; i++ {
		a.wg.Add(1)
		go a.acceptLoop(ctx)
	}
	return nil
}

// acceptLoop is one worker's Accept/dispatch cycle ("accept loop
// (per worker)"). Failures are classified per the contract: transient
// errors are logged and retried with backoff, a shutting-down listener
// exits quietly, anything else is unrecoverable and ends the worker.
func (a *Acceptor) acceptLoop(ctx context.Context) {
	defer a.wg.Done()

	var tempDelay time.Duration
	for {
		raw, err := a.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				a.stats.AcceptErrsTotal.WithLabelValues("transient").Inc()
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := time.Second; tempDelay > max {
					tempDelay = max
				}
				a.log.Warnf("accept: %v; retrying in %v", err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			a.stats.AcceptErrsTotal.WithLabelValues("unrecoverable").Inc()
			a.log.Errorf("accept: unrecoverable error, worker exiting: %v", err)
			return
		}
		tempDelay = 0
		a.dispatch(ctx, raw)
	}
}

// dispatch applies transport options, hands raw to the ConnectionFactory,
// and runs the resulting Connection to completion on its own goroutine.
// Idle-deadline enforcement is the Connection's own job (core.Server already
// tracks ReadTimeout/IdleTimeout per request cycle); dispatch only sets the
// socket-level options.
func (a *Acceptor) dispatch(ctx context.Context, raw net.Conn) {
	if tcpConn, ok := raw.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
		if a.opts.SoLinger != 0 {
			tcpConn.SetLinger(a.opts.SoLinger)
		}
	}

	tracker := a.stats.trackAccept()

	conn, err := a.factory.NewConnection(raw, bufio.NewReader(raw), a.srv)
	if err != nil {
		a.stats.trackClose(tracker)
		a.log.Warnf("accept: %s rejected by connection factory: %v", raw.RemoteAddr(), err)
		raw.Close()
		return
	}

	a.mu.Lock()
	a.conns[conn] = tracker
	a.mu.Unlock()
	core.LifecycleEvents.Dispatch(core.EventConnectionAccepted)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		conn.Serve(ctx)

		a.mu.Lock()
		t := a.conns[conn]
		delete(a.conns, conn)
		a.mu.Unlock()
		a.stats.trackClose(t)
		core.LifecycleEvents.Dispatch(core.EventConnectionClosed)
	}()
}

// Stop closes the listener, cancels every in-flight Connection's context,
// drains registered Graceful components, and waits for all acceptor
// workers and Connections to finish, in order. It collects
// every error encountered along the way into a single aggregate.
func (a *Acceptor) Stop(ctx context.Context) error {
	var errs *multierror.Error
	core.LifecycleEvents.Dispatch(core.EventAcceptorStopping)

	if a.listener != nil {
		if err := a.listener.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if a.cancel != nil {
		a.cancel()
	}

	for _, g := range a.graceful {
		gctx := ctx
		if a.opts.StopTimeout > 0 {
			var cancel context.CancelFunc
			gctx, cancel = context.WithTimeout(ctx, a.opts.StopTimeout)
			defer cancel()
		}
		if err := g.Drain(gctx); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = multierror.Append(errs, ctx.Err())
	}

	return errs.ErrorOrNil()
}
