/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package th

import (
	"bytes"

	. "github.com/badu/httpcore"
	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/sniff"
)

// ResponseRecorder is an implementation of ResponseWriter that
// records its mutations for later inspection in tests.
type ResponseRecorder struct {
	// Code is the HTTP response code set by WriteHeader.
	//
	// NewRecorder starts it at StatusOK, so a Handler that never
	// calls WriteHeader or Write leaves it at 200.
	Code int

	// HeaderMap contains the headers explicitly set by the Handler.
	// It is an internal detail; populated before a call to WriteHeader
	// and not on a call to Write. Use Header to read or write to it.
	HeaderMap hdr.Header

	// Body is the buffer to which the Handler's Write calls are sent.
	// If nil, the Writes are silently discarded.
	Body *bytes.Buffer

	// Flushed is whether the Handler called Flush.
	Flushed bool

	wroteHeader bool
	snapHeader  hdr.Header
}

// NewRecorder returns an initialized ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{
		HeaderMap: make(hdr.Header),
		Body:      new(bytes.Buffer),
		Code:      StatusOK,
	}
}

// Header implements ResponseWriter. It returns the response headers
// to mutate within a Handler.
func (rw *ResponseRecorder) Header() hdr.Header {
	m := rw.HeaderMap
	if m == nil {
		m = make(hdr.Header)
		rw.HeaderMap = m
	}
	return m
}

// writeHeader writes a header if it was not written yet and
// detects Content-Type if needed.
//
// b (or str, when b is nil) is used to detect content-type if needed.
func (rw *ResponseRecorder) writeHeader(b []byte, str string) {
	if rw.wroteHeader {
		return
	}
	if len(str) > 512 {
		str = str[:512]
	}

	m := rw.Header()

	_, hasType := m[hdr.ContentType]
	hasTE := m.Get(hdr.TransferEncoding) != ""
	if !hasType && !hasTE {
		if b == nil {
			b = []byte(str)
		}
		m.Set(hdr.ContentType, sniff.DetectContentType(b))
	}

	rw.WriteHeader(StatusOK)
}

// Write implements ResponseWriter.
func (rw *ResponseRecorder) Write(buf []byte) (int, error) {
	rw.writeHeader(buf, "")
	if rw.Body != nil {
		rw.Body.Write(buf)
	}
	return len(buf), nil
}

// WriteString implements a ResponseWriter extension several handlers
// in this module use to avoid a []byte conversion.
func (rw *ResponseRecorder) WriteString(str string) (int, error) {
	rw.writeHeader(nil, str)
	if rw.Body != nil {
		rw.Body.WriteString(str)
	}
	return len(str), nil
}

// WriteHeader implements ResponseWriter.
func (rw *ResponseRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}

	rw.Code = code
	rw.wroteHeader = true
	if rw.HeaderMap == nil {
		rw.HeaderMap = make(hdr.Header)
	}
	rw.snapHeader = rw.HeaderMap.Clone()
}

// Flush implements Flusher. To test whether Flush was called, see rw.Flushed.
func (rw *ResponseRecorder) Flush() {
	if !rw.wroteHeader {
		rw.WriteHeader(StatusOK)
	}
	rw.Flushed = true
}
