/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package th

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	. "github.com/badu/httpcore"
)

// TestServer is an HTTP server listening on a system-chosen port on the
// local loopback interface, for use in end-to-end tests. Unlike a
// production deployment, TestServer drives its own accept loop directly
// over NewEndpoint rather than going through a pooled acceptor, since
// tests care about determinism, not throughput.
type TestServer struct {
	URL      string // base URL of form http://ipaddr:port with no trailing slash
	Listener net.Listener

	// TLS is the optional TLS configuration, populated with a new
	// config after TLS is started. If set on an unstarted server
	// before StartTLS is called, existing fields are copied into the
	// new config.
	TLS *tls.Config

	// Config may be changed after calling NewUnstartedServer and
	// before Start or StartTLS.
	Config *Server

	certificate *x509.Certificate

	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	conns  map[*Endpoint]ConnState
	wg     sync.WaitGroup
}

// NewTestServer starts and returns a new TestServer.
// The caller should call Close when finished, to shut it down.
func NewTestServer(handler Handler) *TestServer {
	ts := NewUnstartedServer(handler)
	ts.Start()
	return ts
}

// NewUnstartedServer returns a new TestServer but doesn't start it.
//
// After changing its configuration, the caller should call Start or
// StartTLS.
//
// The caller should call Close when finished, to shut it down.
func NewUnstartedServer(handler Handler) *TestServer {
	cfg := NewServer()
	cfg.Handler = handler
	return &TestServer{
		Listener: newLocalListener(),
		Config:   cfg,
	}
}

// NewTLSServer starts and returns a new TestServer using TLS.
// The caller should call Close when finished, to shut it down.
func NewTLSServer(handler Handler) *TestServer {
	ts := NewUnstartedServer(handler)
	ts.StartTLS()
	return ts
}

func newLocalListener() net.Listener {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		if l, err = net.Listen("tcp6", "[::1]:0"); err != nil {
			panic(fmt.Sprintf("th: failed to listen on a port: %v", err))
		}
	}
	return l
}

// Start starts a server from NewUnstartedServer.
func (s *TestServer) Start() {
	if s.URL != "" {
		panic("th: server already started")
	}
	s.URL = HttpUrlPrefix + s.Listener.Addr().String()
	s.wrap()
	s.goServe()
}

// StartTLS starts TLS on a server from NewUnstartedServer.
func (s *TestServer) StartTLS() {
	if s.URL != "" {
		panic("th: server already started")
	}

	cert, leaf, err := newLocalhostCert()
	if err != nil {
		panic(fmt.Sprintf("th: NewTLSServer: %v", err))
	}
	s.certificate = leaf

	existingConfig := s.TLS
	if existingConfig != nil {
		s.TLS = existingConfig.Clone()
	} else {
		s.TLS = new(tls.Config)
	}
	if s.TLS.NextProtos == nil {
		s.TLS.NextProtos = []string{"http/1.1"}
	}
	if len(s.TLS.Certificates) == 0 {
		s.TLS.Certificates = []tls.Certificate{cert}
	}
	s.Config.TLSConfig = s.TLS

	s.Listener = tls.NewListener(s.Listener, s.TLS)
	s.URL = HttpsUrlPrefix + s.Listener.Addr().String()
	s.wrap()
	s.goServe()
}

// Certificate returns the certificate used by the server, or nil if
// the server doesn't use TLS.
func (s *TestServer) Certificate() *x509.Certificate {
	return s.certificate
}

// Close shuts down the server and blocks until all outstanding
// connections on this server have completed.
func (s *TestServer) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.Listener.Close()
		s.Config.SetKeepAlivesEnabled(false)
		for ep, st := range s.conns {
			if st == StateIdle {
				s.closeConn(ep)
			}
		}
		if s.cancel != nil {
			s.cancel()
		}
		t := time.AfterFunc(5*time.Second, s.logCloseHangDebugInfo)
		defer t.Stop()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *TestServer) logCloseHangDebugInfo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf bytes.Buffer
	buf.WriteString("th: TestServer blocked in Close after 5 seconds, waiting for connections:\n")
	for ep, st := range s.conns {
		fmt.Fprintf(&buf, "  %p %v in state %v\n", ep, ep.RemoteAddr(), st)
	}
	log.Print(buf.String())
}

// CloseClientConnections closes any open connections to the test server.
func (s *TestServer) CloseClientConnections() {
	s.mu.Lock()
	eps := make([]*Endpoint, 0, len(s.conns))
	for ep := range s.conns {
		eps = append(eps, ep)
	}
	s.mu.Unlock()

	for _, ep := range eps {
		s.closeConn(ep)
	}
}

// goServe runs the accept loop for s.Listener, handing each accepted
// connection to NewEndpoint/Endpoint.Serve the way an accept-package
// Acceptor would in production.
func (s *TestServer) goServe() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			raw, err := s.Listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if ne, ok := err.(net.Error); ok && ne.Temporary() {
					continue
				}
				return
			}
			ep, err := NewEndpoint(raw, bufio.NewReader(raw), s.Config)
			if err != nil {
				raw.Close()
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				ep.Serve(ctx)
			}()
		}
	}()
}

// wrap installs the connection state-tracking hook used by Close and
// CloseClientConnections to know which connections are idle. Unlike a
// ConnState callback wired up through an accept-package Acceptor, the
// StateNew transition itself is never observed here: Endpoint.Serve only
// calls setState on its own transitions (Active/Idle/Closed/Hijacked), so
// the first time this hook sees a given Endpoint, its state is whatever
// that first transition reports.
func (s *TestServer) wrap() {
	oldHook := s.Config.ConnState
	s.Config.ConnState = func(ep *Endpoint, cs ConnState) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.conns == nil {
			s.conns = make(map[*Endpoint]ConnState)
		}
		if _, seen := s.conns[ep]; !seen {
			s.wg.Add(1)
		}
		s.conns[ep] = cs
		switch cs {
		case StateHijacked, StateClosed:
			s.forgetConnLocked(ep)
		case StateIdle:
			if s.closed {
				s.closeConnLocked(ep)
			}
		}
		if oldHook != nil {
			oldHook(ep, cs)
		}
	}
}

// closeConn closes ep's underlying connection.
func (s *TestServer) closeConn(ep *Endpoint) { ep.Close() }

// closeConnLocked is closeConn but called with s.mu already held.
func (s *TestServer) closeConnLocked(ep *Endpoint) { ep.Close() }

// forgetConnLocked removes ep from the set of tracked connections and
// decrements it from the waitgroup, unless it was previously removed.
// s.mu must be held.
func (s *TestServer) forgetConnLocked(ep *Endpoint) {
	if _, ok := s.conns[ep]; ok {
		delete(s.conns, ep)
		s.wg.Done()
	}
}
