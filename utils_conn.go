/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"bufio"
	"io"
	"net"
	"os"
	"sync"
)

// bufioWriterPool is keyed by the buffer size requested, since a Channel
// needs both a small pool for the chunkWriter's output buffer and the
// connection's own bufio.Writer.
var bufioWriterPool = map[int]*sync.Pool{
	bufferBeforeChunkingSize: {New: func() interface{} { return bufio.NewWriterSize(nil, bufferBeforeChunkingSize) }},
	4 << 10:                  {New: func() interface{} { return bufio.NewWriterSize(nil, 4<<10) }},
}

func bufioWriterPoolFor(size int) *sync.Pool {
	if p, ok := bufioWriterPool[size]; ok {
		return p
	}
	return &sync.Pool{New: func() interface{} { return bufio.NewWriterSize(nil, size) }}
}

// newBufioWriterSize recycles a pooled *bufio.Writer of the given size,
// resetting it onto w.
func newBufioWriterSize(w io.Writer, size int) *bufio.Writer {
	pool := bufioWriterPoolFor(size)
	if v := pool.Get(); v != nil {
		bw := v.(*bufio.Writer)
		bw.Reset(w)
		return bw
	}
	return bufio.NewWriterSize(w, size)
}

// putBufioWriter returns bw to its size-matched pool once it's no longer
// tied to any connection.
func putBufioWriter(bw *bufio.Writer) {
	size := bw.Size()
	bw.Reset(nil)
	bufioWriterPoolFor(size).Put(bw)
}

// srcIsRegularFile reports whether src, used by response.ReadFrom's
// sendfile fast path, is backed by a plain *os.File.
func srcIsRegularFile(src io.Reader) (regular bool, err error) {
	switch v := src.(type) {
	case *os.File:
		fi, err := v.Stat()
		if err != nil {
			return false, err
		}
		return fi.Mode().IsRegular(), nil
	default:
		return false, nil
	}
}

// newBufioReader recycles a pooled *bufio.Reader (4KB, net/http's
// historical default) reset onto r, or allocates one if the pool is empty.
func newBufioReader(r io.Reader) *bufio.Reader {
	if v := bufioReaderPool.Get(); v != nil {
		br := v.(*bufio.Reader)
		br.Reset(r)
		return br
	}
	return bufio.NewReaderSize(r, 4096)
}

// putBufioReader returns br to the pool once its Endpoint is done with it.
func putBufioReader(br *bufio.Reader) {
	br.Reset(nil)
	bufioReaderPool.Put(br)
}

// numLeadingCRorLF reports the count of leading CR/LF bytes in v, the RFC
// 2616 section 4.1 tolerance for a stray blank line some old clients send
// before the next pipelined request.
func numLeadingCRorLF(v []byte) (n int) {
	for _, b := range v {
		if b == '\r' || b == '\n' {
			n++
			continue
		}
		break
	}
	return
}

// http1ServerSupportsRequest reports whether the Endpoint's HTTP/1.x loop
// can serve req. ParseHTTPVersion accepts any "HTTP/x.y" token, so this is
// the only place major versions other than 1 get turned away.
func http1ServerSupportsRequest(req *Request) bool {
	return req.ProtoMajor == 1
}

// validNPN reports whether proto is a protocol the Endpoint should hand off
// to a TLSNextProto implementation, rather than serve itself. An empty
// string or explicit http/1.x means "no ALPN handoff".
func validNPN(proto string) bool {
	switch proto {
	case "", "http/1.1", "http/1.0":
		return false
	}
	return true
}

// isCommonNetReadError reports whether err is an ordinary "the client went
// away" condition that doesn't deserve a logged 400 response.
func isCommonNetReadError(err error) bool {
	if err == io.EOF {
		return true
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	if oe, ok := err.(*net.OpError); ok && oe.Op == "read" {
		return true
	}
	return false
}
