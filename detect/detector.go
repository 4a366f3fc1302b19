/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package detect

import (
	"bufio"
	"net"

	core "github.com/badu/httpcore"
)

// DefaultInputBufferSize is the input buffer size used when a Detector is
// built without an explicit size.
const DefaultInputBufferSize = 64

// Detector composes several Detecting ConnectionFactory implementations and
// peeks at a connection's first bytes to decide which of them serves it.
// It is itself a core.ConnectionFactory, so it can be registered
// wherever a single default factory is expected.
type Detector struct {
	factories []core.ConnectionFactory
	fallback  core.ConnectionFactory
	bufSize   int
}

// NewDetector builds a Detector. bufSize ≤ 0 uses DefaultInputBufferSize.
// fallback is the "connector's next protocol" tried when every factory
// returns Unrecognized before the buffer fills; it may be nil, in which
// case that outcome fails the connection.
func NewDetector(bufSize int, fallback core.ConnectionFactory, factories ...core.ConnectionFactory) *Detector {
	if bufSize <= 0 {
		bufSize = DefaultInputBufferSize
	}
	return &Detector{factories: factories, fallback: fallback, bufSize: bufSize}
}

// Detect always reports Recognized: a Detector is meant to be the terminal,
// outermost factory for a connector, never itself peeked by another
// Detector.
func (d *Detector) Detect(_ []byte) core.DetectResult { return core.DetectRecognized }

// NewConnection runs the detection loop: grow the peeked prefix one
// byte at a time (without consuming it from br), asking every still-live
// factory to classify it, until one recognises the connection, all of them
// rule it out, or the buffer limit is reached with some still undecided.
func (d *Detector) NewConnection(raw net.Conn, br *bufio.Reader, srv *core.Server) (core.Connection, error) {
	live := append([]core.ConnectionFactory(nil), d.factories...)

	for n := 1; n <= d.bufSize && len(live) > 0; n++ {
		peeked, err := br.Peek(n)
		if err != nil {
			// Fewer bytes available than requested: the peer sent less than
			// n and isn't sending more right now. Judge on what we have.
			if len(peeked) == 0 {
				return nil, core.NewDetectionFailed("connection factory detection: " + err.Error())
			}
			break
		}

		var remaining []core.ConnectionFactory
		for _, f := range live {
			switch f.Detect(peeked) {
			case core.DetectRecognized:
				return f.NewConnection(raw, br, srv)
			case core.DetectNeedMoreData:
				remaining = append(remaining, f)
			}
		}
		live = remaining
	}

	if len(live) > 0 {
		// Buffer exhausted (or the peer stalled) with at least one factory
		// still undecided: when two or more detectors both keep returning
		// need-more-data until the buffer runs out, the connection is closed
		// as a detection failure. No fallback is consulted in this case.
		return nil, core.NewDetectionFailed("connection factory detection: buffer exhausted with undecided factories")
	}

	if d.fallback != nil {
		return d.fallback.NewConnection(raw, br, srv)
	}
	return nil, core.NewDetectionFailed("connection factory detection: no factory recognised the connection")
}
