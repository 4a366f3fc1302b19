/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"runtime"
	"time"

	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/url"
)

// NewEndpoint wraps raw, a freshly accepted socket, as an Endpoint: the
// Connection that drives one HTTP/1.1 client for its lifetime. br is the
// bufio.Reader a ConnectionFactory peeked through during detection;
// any bytes it already buffered are preserved, since Endpoint reuses it
// rather than wrapping raw a second time.
func NewEndpoint(raw net.Conn, br *bufio.Reader, srv *Server) (*Endpoint, error) {
	ep := &Endpoint{
		server:      srv,
		netConIface: raw,
		remoteAddr:  raw.RemoteAddr().String(),
		bufReader:   br,
	}
	ep.reader = &connReader{conn: ep}
	return ep, nil
}

// c.mu must be held.
func (c *Endpoint) hijackLocked() (net.Conn, *bufio.ReadWriter, error) {
	if c.wasHijacked {
		return nil, nil, ErrHijacked
	}

	c.reader.abortPendingRead()

	c.wasHijacked = true

	netConn := c.netConIface
	netConn.SetDeadline(time.Time{})

	buf := bufio.NewReadWriter(c.bufReader, bufio.NewWriter(netConn))
	if c.reader.hasByte {
		if _, err := c.bufReader.Peek(c.bufReader.Buffered() + 1); err != nil {
			return nil, nil, fmt.Errorf("unexpected Peek failure reading buffered byte: %v", err)
		}
	}
	c.server.setState(c, StateHijacked)
	return netConn, buf, nil
}

// readChannel reads the next request off the wire and wraps it, along with
// a fresh response, as a Channel ready for Channel.handle.
func (c *Endpoint) readChannel(ctx context.Context) (*Channel, error) {
	if c.hijacked() {
		return nil, ErrHijacked
	}

	srv := c.server

	var hdrDeadline time.Time // or zero if none
	t0 := time.Now()

	if d := srv.readHeaderTimeout(); d != 0 {
		hdrDeadline = t0.Add(d)
	}

	var wholeReqDeadline time.Time // or zero if none
	if d := srv.ReadTimeout; d != 0 {
		wholeReqDeadline = t0.Add(d)
	}

	c.netConIface.SetReadDeadline(hdrDeadline)

	if d := srv.WriteTimeout; d != 0 {
		defer func() {
			c.netConIface.SetWriteDeadline(time.Now().Add(d))
		}()
	}

	c.reader.setReadLimit(srv.initialReadLimitSize())

	// RFC 2616 section 4.1 tolerance for old buggy clients.
	if c.lastMethod == POST {
		peek, _ := c.bufReader.Peek(4)
		c.bufReader.Discard(numLeadingCRorLF(peek))
	}

	req, err := readRequest(c.bufReader, false)
	if err != nil {
		if c.reader.hitReadLimit() {
			return nil, errTooLarge
		}
		return nil, err
	}

	if !http1ServerSupportsRequest(req) {
		return nil, badRequestError("unsupported protocol version")
	}

	c.lastMethod = req.Method
	c.reader.setInfiniteReadLimit()

	hosts, haveHost := req.Header[hdr.Host]
	if req.ProtoAtLeast(1, 1) && (!haveHost || len(hosts) == 0) && req.Method != CONNECT {
		return nil, badRequestError("missing required Host header")
	}
	if len(hosts) > 1 {
		return nil, badRequestError("too many Host headers")
	}
	if len(hosts) == 1 && !url.ValidHostHeader(hosts[0]) {
		return nil, badRequestError("malformed Host header")
	}
	for k, vv := range req.Header {
		if !hdr.ValidHeaderFieldName(k) {
			return nil, badRequestError("invalid header name")
		}
		for _, v := range vv {
			if !hdr.ValidHeaderFieldValue(v) {
				return nil, badRequestError("invalid header value")
			}
		}
	}
	delete(req.Header, hdr.Host)

	reqCtx, cancelCtx := context.WithCancel(ctx)
	req.ctx = reqCtx
	req.RemoteAddr = c.netConIface.RemoteAddr().String()
	req.TLS = c.tlsState
	if b, ok := req.Body.(*body); ok {
		b.doEarlyClose = true
	}

	// Adjust the read deadline if necessary.
	if !hdrDeadline.Equal(wholeReqDeadline) {
		c.netConIface.SetReadDeadline(wholeReqDeadline)
	}

	resp := &response{
		ctx:           reqCtx,
		cancelCtx:     cancelCtx,
		req:           req,
		reqBody:       req.Body,
		handlerHeader: make(hdr.Header),
		contentLength: -1,
		closeNotifyCh: make(chan bool, 1),

		// We populate these ahead of time so we're not reading from
		// req.Header after the handler starts and maybe mutates it.
		wants10KeepAlive: req.wantsHttp10KeepAlive(),
		wantsClose:       req.wantsClose(),
	}
	resp.chunkWriter.res = resp
	resp.bufWriter = newBufioWriterSize(&resp.chunkWriter, bufferBeforeChunkingSize)

	ch := newChannel(ctx, c, srv, req, resp)
	return ch, nil
}

func (c *Endpoint) finalFlush() {
	if c.bufReader != nil {
		putBufioReader(c.bufReader)
		c.bufReader = nil
	}

	if c.bufWriter != nil {
		c.bufWriter.Flush()
		putBufioWriter(c.bufWriter)
		c.bufWriter = nil
	}
}

// closeWriteAndWait flushes any outstanding data and sends a FIN packet (if
// the client is connected via TCP), signalling that we're done. We then
// pause for a bit, hoping the client processes it before any subsequent
// RST.
func (c *Endpoint) closeWriteAndWait() {
	c.finalFlush()
	if tcp, ok := c.netConIface.(closeWriter); ok {
		tcp.CloseWrite()
	}
	time.Sleep(rstAvoidanceDelay)
}

// Serve drives the Endpoint until its connection closes, is hijacked, or
// ctx is cancelled. It performs the TLS handshake and ALPN handoff
// (if any) before entering the HTTP/1.1 request loop: read a Channel, run
// it through the Handler, and either reuse the connection for the next
// request or tear it down.
func (c *Endpoint) Serve(ctx context.Context) {
	srv := c.server
	ctx = context.WithValue(ctx, SrvCtxtKey, srv)
	ctx = context.WithValue(ctx, LocalAddrContextKey, c.netConIface.LocalAddr())

	defer func() {
		if err := recover(); err != nil && err != ErrAbortHandler {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			srv.logf("http: panic serving %v: %v\n%s", c.netConIface.RemoteAddr().String(), err, buf)
		}
		if !c.hijacked() {
			c.Close()
			srv.setState(c, StateClosed)
		}
	}()

	if tlsConn, ok := c.netConIface.(*tls.Conn); ok {
		if d := srv.ReadTimeout; d != 0 {
			c.netConIface.SetReadDeadline(time.Now().Add(d))
		}
		if d := srv.WriteTimeout; d != 0 {
			c.netConIface.SetWriteDeadline(time.Now().Add(d))
		}
		if err := tlsConn.Handshake(); err != nil {
			srv.logf("http: TLS handshake error from %s: %v", c.netConIface.RemoteAddr(), err)
			return
		}
		c.tlsState = new(tls.ConnectionState)
		*c.tlsState = tlsConn.ConnectionState()
		if proto := c.tlsState.NegotiatedProtocol; validNPN(proto) {
			// NextProtocolConnection handoff: fn owns reading/writing the
			// connection for as long as it runs; once it returns, the
			// deferred cleanup above closes the connection.
			if fn := srv.TLSNextProto[proto]; fn != nil {
				fn(srv, tlsConn, srv.Handler)
			}
			return
		}
	}

	// HTTP/1.x from here on.
	ctx, cancelCtx := context.WithCancel(ctx)
	c.cancelCtx = cancelCtx
	defer cancelCtx()

	if c.bufReader == nil {
		c.bufReader = newBufioReader(c.reader)
	}
	c.bufWriter = newBufioWriterSize(checkConnErrorWriter{c}, 4<<10)

	for {
		ch, err := c.readChannel(ctx)
		if c.reader.remain != srv.initialReadLimitSize() {
			// If we read any bytes off the wire, we're active.
			srv.setState(c, StateActive)
		}
		if err != nil {
			if err == errTooLarge {
				fmt.Fprintf(c.netConIface, "HTTP/1.1 431 Request Header Fields Too Large"+errorHeaders+"431 Request Header Fields Too Large")
				c.closeWriteAndWait()
				return
			}
			if isCommonNetReadError(err) {
				return // don't reply
			}

			publicErr := "400 Bad Request"
			if v, ok := err.(badRequestError); ok {
				publicErr = publicErr + ": " + string(v)
			}

			fmt.Fprintf(c.netConIface, "HTTP/1.1 "+publicErr+errorHeaders+publicErr)
			return
		}

		req, resp := ch.req, ch.resp

		// Expect 100 Continue support
		if req.ExpectsContinue() {
			if req.ProtoAtLeast(1, 1) && req.ContentLength != 0 {
				req.Body = &expectContinueReader{readCloser: req.Body, resp: resp}
			}
		} else if req.Header.Get(hdr.Expect) != "" {
			resp.sendExpectationFailed()
			return
		}
		c.curReq.Store(resp)

		if requestBodyRemains(req.Body) {
			registerOnHitEOF(req.Body, c.reader.startBackgroundRead)
		} else {
			if c.bufReader.Buffered() > 0 {
				c.reader.closeNotifyFromPipelinedRequest()
			}
			c.reader.startBackgroundRead()
		}

		// HTTP cannot have multiple simultaneous active requests on one
		// connection, so we run the handler chain on this goroutine.
		ch.handle(srv.Handler)

		if c.hijacked() {
			return
		}

		// certain conditions won't let us reuse the connection
		if !resp.shouldReuseConnection() {
			if resp.requestBodyLimitHit || resp.closedRequestBodyEarly() {
				c.closeWriteAndWait()
			}
			return
		}

		srv.setState(c, StateIdle)
		c.curReq.Store((*response)(nil))

		if !srv.doKeepAlives() {
			// We're in shutdown mode. We might've replied to the user
			// without "Connection: close" and they might think they can
			// send another request, but such is life with HTTP/1.1.
			return
		}

		if d := srv.idleTimeout(); d != 0 {
			c.netConIface.SetReadDeadline(time.Now().Add(d))
			if _, err := c.bufReader.Peek(4); err != nil {
				return
			}
		}
		c.netConIface.SetReadDeadline(time.Time{})
	}
}
