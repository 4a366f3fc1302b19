/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"bufio"
	"io"
	"strings"

	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/url"
)

func (e *badStringError) Error() string { return e.what + ": " + e.str }

// Parser turns bytes read off a connection into a *Request.
// defaultParser below is the only implementation, built on bufio and
// hdr.HeaderReader. Endpoint's readChannel calls readRequest directly
// rather than going through a Parser.
type Parser interface {
	ReadRequest(b *bufio.Reader, deleteHostHeader bool) (*Request, error)
}

type defaultParser struct{}

// NewParser returns a Parser backed by readRequest.
func NewParser() Parser { return defaultParser{} }

func (defaultParser) ReadRequest(b *bufio.Reader, deleteHostHeader bool) (*Request, error) {
	return readRequest(b, deleteHostHeader)
}

// ReadRequest reads and parses a single HTTP/1.x request from b, leaving
// the Host header in place. It's exported for callers outside the server
// core (test helpers building a *Request by hand) that don't go through
// an Endpoint's own readChannel.
func ReadRequest(b *bufio.Reader) (*Request, error) {
	return readRequest(b, false)
}

// readRequest parses a single HTTP/1.x request from b, before the request
// is handed to a Channel.
func readRequest(b *bufio.Reader, deleteHostHeader bool) (*Request, error) {
	tp := newTextprotoReader(b)
	req := new(Request)

	var s string
	var err error
	if s, err = tp.ReadLine(); err != nil {
		return nil, err
	}
	defer func() {
		putTextprotoReader(tp)
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
	}()

	var ok bool
	req.Method, req.RequestURI, req.Proto, ok = parseRequestLine(s)
	if !ok {
		return nil, &badStringError{"malformed HTTP request", s}
	}
	if !ValidMethod(req.Method) {
		return nil, &badStringError{"invalid method", req.Method}
	}
	rawurl := req.RequestURI
	if req.ProtoMajor, req.ProtoMinor, ok = ParseHTTPVersion(req.Proto); !ok {
		return nil, &badStringError{"malformed HTTP version", req.Proto}
	}

	justAuthority := req.Method == CONNECT && !strings.HasPrefix(rawurl, "/")
	if justAuthority {
		rawurl = HttpUrlPrefix + rawurl
	}

	if req.URL, err = url.ParseRequestURI(rawurl); err != nil {
		return nil, err
	}

	if justAuthority {
		req.URL.Scheme = ""
	}

	mimeHeader, err := tp.ReadHeader()
	if err != nil {
		return nil, err
	}
	req.Header = hdr.Header(mimeHeader)

	req.Host = req.URL.Host
	if req.Host == "" {
		req.Host = req.Header.Get(hdr.Host)
	}
	if deleteHostHeader {
		delete(req.Header, hdr.Host)
	}

	fixPragmaCacheControl(req.Header)

	req.Close = shouldClose(req.ProtoMajor, req.ProtoMinor, req.Header, false)

	if err = readTransfer(req, b); err != nil {
		return nil, err
	}
	return req, nil
}

func newTextprotoReader(br *bufio.Reader) *hdr.HeaderReader {
	if v := headerReaderPool.Get(); v != nil {
		tr := v.(*hdr.HeaderReader)
		tr.R = br
		return tr
	}
	return hdr.NewHeaderReader(br)
}

func putTextprotoReader(r *hdr.HeaderReader) {
	r.R = nil
	headerReaderPool.Put(r)
}
