/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
)

type (
	// Endpoint is one accepted socket: the data-model Connection,
	// carrying the bufio plumbing a Channel writes its response through and
	// the single in-flight *Channel an HTTP/1.1 connection can have.
	//
	// Endpoint plays the role net/http's unexported conn struct plays;
	// it is exported here because the accept/detect packages need to build
	// and hand them to the core.
	Endpoint struct {
		server *Server

		netConIface net.Conn
		remoteAddr  string
		tlsState    *tls.ConnectionState

		reader    *connReader
		bufReader *bufio.Reader
		bufWriter *bufio.Writer

		mu          sync.Mutex
		wasHijacked bool
		lastMethod  string

		// curReq holds the *Channel of the in-flight request/response, or
		// nil between requests. Read by connReader.closeNotify from a
		// background-read goroutine, hence atomic.Value rather than a
		// plain field guarded by mu.
		curReq atomic.Value

		wErr      error
		cancelCtx context.CancelFunc

		state ConnState
	}

	// connReader wraps Endpoint's net.Conn with the single-background-read
	// trick that lets the Channel state machine learn "the client hung up or
	// sent the next request's first byte" without blocking a handler goroutine
	// on a dedicated read.
	connReader struct {
		conn *Endpoint

		mu      sync.Mutex
		cond    *sync.Cond
		hasByte bool
		byteBuf [1]byte

		aborted bool
		remain  int64
		inRead  bool
	}

	// Connection is the lifecycle contract: what the Acceptor
	// sees for any accepted socket, independent of the protocol the
	// connection turns out to speak.
	Connection interface {
		// Serve drives the connection until it closes, is hijacked, or ctx
		// is cancelled by a graceful shutdown.
		Serve(ctx context.Context)
		// Close tears the connection down immediately.
		Close() error
		// State reports the observable ConnState.
		State() ConnState
		RemoteAddr() net.Addr
	}

	// ConnectionFactory is the connection factory & protocol detection
	// contract: given a freshly accepted, not-yet-classified socket, decide
	// whether this factory recognises the bytes on the wire and, if so,
	// produce the Connection that will serve it.
	ConnectionFactory interface {
		// Detect peeks at buffered bytes (without consuming them) and
		// reports whether this factory recognises the protocol.
		Detect(peeked []byte) DetectResult
		// NewConnection builds the Connection once a factory has claimed
		// the socket. br has already buffered any bytes peeked during
		// detection, so NewConnection must read through br, not raw.
		NewConnection(raw net.Conn, br *bufio.Reader, srv *Server) (Connection, error)
	}

	// DetectResult is a ConnectionFactory's verdict on a peeked byte prefix.
	DetectResult int

	// Graceful is implemented by anything the acceptor must wait for during
	// an ordered shutdown.
	Graceful interface {
		// Drain blocks until in-flight work created before the call to
		// Drain has completed, or ctx is done.
		Drain(ctx context.Context) error
	}
)

const (
	// DetectUnrecognized means this factory does not claim the connection;
	// the detector tries the next registered factory.
	DetectUnrecognized DetectResult = iota
	// DetectRecognized means this factory claims the connection outright.
	DetectRecognized
	// DetectNeedMoreData means the factory cannot decide yet and more bytes
	// must be peeked before any factory can be asked again.
	DetectNeedMoreData
)

func (d DetectResult) String() string {
	switch d {
	case DetectRecognized:
		return "Recognized"
	case DetectNeedMoreData:
		return "NeedMoreData"
	default:
		return "Unrecognized"
	}
}

func (c *Endpoint) hijacked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wasHijacked
}

func (c *Endpoint) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Endpoint) RemoteAddr() net.Addr {
	return c.netConIface.RemoteAddr()
}

func (c *Endpoint) Close() error {
	c.finalFlush()
	return c.netConIface.Close()
}
