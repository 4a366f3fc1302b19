/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package detect implements the connection factory & protocol detection
// layer: a registry of http.ConnectionFactory implementations and a
// composing Detector that peeks at a connection's first bytes to pick one.
package detect

import (
	"bufio"
	"net"

	core "github.com/badu/httpcore"
)

// HTTP1Factory is the default, non-detecting ConnectionFactory: it always
// recognises and simply hands the socket straight to core.NewEndpoint. It
// is the "connector's next protocol" a Detector falls back to when every
// Detecting factory returns NOT_RECOGNIZED.
type HTTP1Factory struct{}

// Detect always reports Recognized: HTTP1Factory never peeks, it claims
// whatever it's given.
func (HTTP1Factory) Detect(_ []byte) core.DetectResult { return core.DetectRecognized }

// NewConnection builds the plain HTTP/1.1 Connection for raw.
func (HTTP1Factory) NewConnection(raw net.Conn, br *bufio.Reader, srv *core.Server) (core.Connection, error) {
	return core.NewEndpoint(raw, br, srv)
}
