/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import "io"

// sizeLimitReader is the InputInterceptor counterpart of maxBytesReader
// (max_bytes_reader.go): once more than limit bytes have been read from the
// wrapped body, further reads fail with a KindSizeLimitExceeded CoreError
// instead of a plain "http: request body too large" string, so
// the error handler can render the right status/reason.
type sizeLimitReader struct {
	r         io.ReadCloser
	remaining int64
	err       error
}

// NewSizeLimitReader bounds r to limit bytes.
func NewSizeLimitReader(r io.ReadCloser, limit int64) InputInterceptor {
	return &sizeLimitReader{r: r, remaining: limit}
}

func (l *sizeLimitReader) Read(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	if int64(n) <= l.remaining {
		l.remaining -= int64(n)
		l.err = err
		return n, err
	}
	n = int(l.remaining)
	l.remaining = 0
	l.err = NewSizeLimitExceeded(StatusRequestEntityTooLarge, "request body too large")
	return n, l.err
}

func (l *sizeLimitReader) Close() error { return l.r.Close() }

// sizeLimitWriter is the OutputInterceptor counterpart: it caps the total
// number of response body bytes a handler may write, for handlers that
// stream a response whose length isn't known up front.
type sizeLimitWriter struct {
	remaining int64
	err       error
}

// NewSizeLimitWriter returns an OutputInterceptor that errors once more
// than limit bytes have passed through Write.
func NewSizeLimitWriter(limit int64) OutputInterceptor {
	return &sizeLimitWriter{remaining: limit}
}

func (w *sizeLimitWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if int64(len(p)) > w.remaining {
		w.err = NewSizeLimitExceeded(StatusInternalServerError, "response body too large")
		return 0, w.err
	}
	w.remaining -= int64(len(p))
	return len(p), nil
}

func (w *sizeLimitWriter) Close() error { return nil }
