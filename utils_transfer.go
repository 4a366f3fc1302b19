/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"bufio"
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/badu/httpcore/hdr"
)

var doubleCRLF = []byte("\r\n\r\n")

// bodyAllowedForStatus reports whether a given response status code
// permits a body. See RFC 2616, section 4.4.
func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == 204:
		return false
	case status == 304:
		return false
	}
	return true
}

func suppressedHeaders(status int) []string {
	switch {
	case status == 304:
		// RFC 2616 section 10.3.5: "the response MUST NOT include other entity-headers"
		return suppressedHeaders304
	case !bodyAllowedForStatus(status):
		return suppressedHeadersNoBody
	}
	return nil
}

// Checks whether chunked is part of the encodings stack
func chunked(te []string) bool { return len(te) > 0 && te[0] == DoChunked }

// shouldClose reports whether to hang up the Endpoint after this
// response finishes, per the header's Connection token and protocol
// version. header is the response's own header set; removeCloseHeader
// strips a "Connection: close" token once consumed so it is not written
// twice by a caller that also sets it explicitly.
func shouldClose(major, minor int, header hdr.Header, removeCloseHeader bool) bool {
	if major < 1 {
		return true
	}

	conv := header[hdr.Connection]
	hasClose := headersValuesContainsToken(conv, DoClose)
	if major == 1 && minor == 0 {
		return hasClose || !headersValuesContainsToken(conv, DoKeepAlive)
	}

	if hasClose && removeCloseHeader {
		header.Del(hdr.Connection)
	}

	return hasClose
}

// headersValuesContainsToken reports whether any string in values
// contains the provided token, ASCII case-insensitively.
func headersValuesContainsToken(values []string, token string) bool {
	for _, v := range values {
		if headerValueContainsToken(v, token) {
			return true
		}
	}
	return false
}

func headerValueContainsToken(v string, token string) bool {
	v = trimOWS(v)
	if comma := strings.IndexByte(v, ','); comma != -1 {
		return tokenEqual(trimOWS(v[:comma]), token) || headerValueContainsToken(v[comma+1:], token)
	}
	return tokenEqual(v, token)
}

func isOWS(b byte) bool { return b == ' ' || b == '\t' }

func trimOWS(x string) string {
	for len(x) > 0 && isOWS(x[0]) {
		x = x[1:]
	}
	for len(x) > 0 && isOWS(x[len(x)-1]) {
		x = x[:len(x)-1]
	}
	return x
}

func tokenEqual(t1, t2 string) bool {
	if len(t1) != len(t2) {
		return false
	}
	for i, b := range t1 {
		if b >= utf8.RuneSelf {
			// No UTF-8 or non-ASCII allowed in tokens.
			return false
		}
		if lowerASCII(byte(b)) != lowerASCII(t2[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// seeUpcomingDoubleCRLF reports whether the buffered reader's unconsumed
// bytes contain a blank-line terminator, growing the peek window until it
// finds one or exhausts the buffer.
func seeUpcomingDoubleCRLF(r *bufio.Reader) bool {
	for peekSize := 4; ; peekSize++ {
		buf, err := r.Peek(peekSize)
		if bytes.HasSuffix(buf, doubleCRLF) {
			return true
		}
		if err != nil {
			break
		}
	}
	return false
}

func mergeSetHeader(dst *hdr.Header, src hdr.Header) {
	if *dst == nil {
		*dst = src
		return
	}
	for k, vv := range src {
		(*dst)[k] = vv
	}
}
