/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package detect

import (
	"bufio"
	"crypto/tls"
	"net"

	core "github.com/badu/httpcore"
)

// TLSFactory is the Detecting ConnectionFactory for SSL/TLS: "first
// byte ∈ {0x15, 0x16} AND second byte = 0x03". Once claimed, it performs the
// TLS handshake (deferred to core.Endpoint.Serve, which already knows how to
// drive a *tls.Conn) and hands the cleartext stream to Inner.
type TLSFactory struct {
	Config *tls.Config
	// Inner is the ConnectionFactory that serves the negotiated plaintext,
	// almost always HTTP1Factory.
	Inner core.ConnectionFactory
}

// Detect implements the heuristic verbatim. Fewer than 2 peeked bytes means
// the caller hasn't read enough yet.
func (f *TLSFactory) Detect(peeked []byte) core.DetectResult {
	if len(peeked) < 2 {
		return core.DetectNeedMoreData
	}
	if (peeked[0] == 0x15 || peeked[0] == 0x16) && peeked[1] == 0x03 {
		return core.DetectRecognized
	}
	return core.DetectUnrecognized
}

// NewConnection wraps raw in a TLS server connection and delegates to
// Inner. br may already have buffered bytes read during detection; those
// are carried over via prefixConn so the TLS handshake sees the full
// ClientHello regardless of how much detection already consumed from the
// socket.
func (f *TLSFactory) NewConnection(raw net.Conn, br *bufio.Reader, srv *core.Server) (core.Connection, error) {
	carried := &prefixConn{Conn: raw, br: br}
	tlsConn := tls.Server(carried, f.Config)
	return f.Inner.NewConnection(tlsConn, bufio.NewReader(tlsConn), srv)
}

// prefixConn is a net.Conn whose Read drains a bufio.Reader's already
// buffered bytes before falling through to the underlying connection,
// exactly the bytes a Detector peeked but didn't hand to the winning
// factory's own bufio.Reader.
type prefixConn struct {
	net.Conn
	br *bufio.Reader
}

func (c *prefixConn) Read(p []byte) (int, error) {
	if c.br.Buffered() > 0 {
		return c.br.Read(p)
	}
	return c.Conn.Read(p)
}
