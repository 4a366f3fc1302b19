/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"crypto/tls"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Server is the embeddable runtime core: it owns the root Handler, the
// timeout scheduler, the error handler, and the knobs that
// used to live on net/http.Server (timeouts, TLSNextProto, ConnState hook).
// It does not itself accept connections — that is the accept package's job
// — Server is what an Acceptor is built around.
type Server struct {
	Handler Handler

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	TLSConfig    *tls.Config
	TLSNextProto map[string]func(*Server, *tls.Conn, Handler)

	// ConnState, if non-nil, is called whenever a connection changes state.
	ConnState func(ep *Endpoint, state ConnState)

	Log *logrus.Logger

	mu         sync.Mutex
	disableKeepAlives int32
	inShutdown        int32

	scheduler *timeoutScheduler
	errHandle *ErrorHandler
}

// NewServer builds a Server with sane defaults plus a default
// ErrorHandler and logger, ready to have Handler set before Start.
func NewServer() *Server {
	return &Server{
		Log:       logrus.StandardLogger(),
		scheduler: newTimeoutScheduler(),
		errHandle: NewErrorHandler(),
	}
}

func (srv *Server) logger() *logrus.Entry {
	if srv.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return logrus.NewEntry(srv.Log)
}

func (srv *Server) logf(format string, args ...interface{}) {
	srv.logger().Errorf(format, args...)
}

func (srv *Server) timeouts() *timeoutScheduler { return srv.scheduler }

func (srv *Server) errorHandler() *ErrorHandler { return srv.errHandle }

// SetErrorHandler overrides the default ErrorHandler.
func (srv *Server) SetErrorHandler(h *ErrorHandler) { srv.errHandle = h }

func (srv *Server) readHeaderTimeout() time.Duration {
	if srv.ReadHeaderTimeout != 0 {
		return srv.ReadHeaderTimeout
	}
	return srv.ReadTimeout
}

func (srv *Server) idleTimeout() time.Duration {
	if srv.IdleTimeout != 0 {
		return srv.IdleTimeout
	}
	return srv.ReadTimeout
}

func (srv *Server) initialReadLimitSize() int64 {
	return int64(srv.maxHeaderBytes()) + 4096
}

func (srv *Server) maxHeaderBytes() int {
	if srv.MaxHeaderBytes != 0 {
		return srv.MaxHeaderBytes
	}
	return DefaultMaxHeaderBytes
}

func (srv *Server) doKeepAlives() bool {
	return atomic.LoadInt32(&srv.disableKeepAlives) == 0 && !srv.shuttingDown()
}

func (srv *Server) shuttingDown() bool {
	return atomic.LoadInt32(&srv.inShutdown) != 0
}

// SetKeepAlivesEnabled controls whether kept-alive Endpoints are offered a
// next request once the current one finishes.
func (srv *Server) SetKeepAlivesEnabled(v bool) {
	if v {
		atomic.StoreInt32(&srv.disableKeepAlives, 0)
		return
	}
	atomic.StoreInt32(&srv.disableKeepAlives, 1)
}

func (srv *Server) setState(ep *Endpoint, state ConnState) {
	ep.mu.Lock()
	ep.state = state
	ep.mu.Unlock()
	if srv.ConnState != nil {
		srv.ConnState(ep, state)
	}
}

// Shutdown marks the server as shutting down; new connections stop being
// offered keep-alive, and Close cancels every outstanding TimeoutTask.
func (srv *Server) Shutdown() {
	atomicStoreInt32(&srv.inShutdown, 1)
}

// Close cancels every outstanding async timeout. It does not itself close
// listeners or connections; that is the Acceptor's responsibility.
func (srv *Server) Close() error {
	srv.Shutdown()
	srv.scheduler.cancelAll()
	return nil
}
