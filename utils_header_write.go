/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"bufio"
	"strconv"
	"strings"
	"time"

	"github.com/badu/httpcore/hdr"
)

// foreachHeaderElement splits a comma-separated header value (such as
// Trailer or Connection) and calls fn on each trimmed, non-empty element.
func foreachHeaderElement(v string, fn func(string)) {
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			fn(f)
		}
	}
}

// appendTime appends t formatted per TimeFormat (RFC 1123, GMT) to b.
func appendTime(b []byte, t time.Time) []byte {
	return t.UTC().AppendFormat(b, TimeFormat)
}

// writeStatusLine writes the response's first line to bw, either
// "HTTP/1.1 200 OK\r\n" or, for pre-1.1 peers, just "HTTP/1.0 200 OK\r\n".
func writeStatusLine(bw *bufio.Writer, is11 bool, code int, scratch []byte) {
	if is11 {
		bw.WriteString("HTTP/1.1 ")
	} else {
		bw.WriteString("HTTP/1.0 ")
	}
	if text, ok := statusText[code]; ok {
		bw.Write(strconv.AppendInt(scratch[:0], int64(code), 10))
		bw.WriteByte(' ')
		bw.WriteString(text)
		bw.WriteString("\r\n")
	} else {
		// don't worry about performance on this one, this is an edge case.
		bw.WriteString(strconv.Itoa(code))
		bw.WriteByte(' ')
		bw.WriteString(StatusText(code))
		bw.WriteString("\r\n")
	}
}

// Write emits the non-empty fields of an extraHeader as header lines,
// matching the order chunkWriter.writeHeader decided on.
func (h extraHeader) Write(w *bufio.Writer) {
	if h.date != nil {
		w.WriteString("Date: ")
		w.Write(h.date)
		w.WriteString("\r\n")
	}
	if h.contentLength != nil {
		w.WriteString(hdr.ContentLength)
		w.WriteString(": ")
		w.Write(h.contentLength)
		w.WriteString("\r\n")
	}
	if h.contentType != "" {
		w.WriteString(hdr.ContentType)
		w.WriteString(": ")
		w.WriteString(h.contentType)
		w.WriteString("\r\n")
	}
	if h.connection != "" {
		w.WriteString(hdr.Connection)
		w.WriteString(": ")
		w.WriteString(h.connection)
		w.WriteString("\r\n")
	}
	if h.transferEncoding != "" {
		w.WriteString(hdr.TransferEncoding)
		w.WriteString(": ")
		w.WriteString(h.transferEncoding)
		w.WriteString("\r\n")
	}
}
