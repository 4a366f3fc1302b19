/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"context"
	"errors"
	"io"

	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/mime"
	"github.com/badu/httpcore/url"
)

// errMultipartHandledByReader is returned when a handler has already taken
// over multipart parsing via
// (*Request).multipartReader, so ParseMultipartForm/FormFile must refuse.
var errMultipartHandledByReader = errors.New("http: multipart handled by MultipartReader")

// Context returns the request's context, always non-nil for a server
// request: it is set once by the Endpoint that read the request and
// cancelled when the Channel serving it finishes.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of r with its context changed to ctx.
// The provided ctx must be non-nil.
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("nil context")
	}
	r2 := new(Request)
	*r2 = *r
	r2.ctx = ctx
	return r2
}

// ProtoAtLeast reports whether the HTTP protocol used in the request is at
// least major.minor.
func (r *Request) ProtoAtLeast(major, minor int) bool {
	return r.ProtoMajor > major || (r.ProtoMajor == major && r.ProtoMinor >= minor)
}

// wantsHttp10KeepAlive reports whether the request expressed
// "Connection: keep-alive" over an HTTP/1.0 wire, the one case where a
// server must opt in rather than assuming persistent connections.
func (r *Request) wantsHttp10KeepAlive() bool {
	if r.ProtoMajor != 1 || r.ProtoMinor != 0 {
		return false
	}
	return hasToken(r.Header.Get(hdr.Connection), DoKeepAlive)
}

// wantsClose reports whether the request (or the HTTP version itself)
// requires the connection to close after this response.
func (r *Request) wantsClose() bool {
	if r.Close {
		return true
	}
	return hasToken(r.Header.Get(hdr.Connection), DoClose)
}

// ExpectsContinue reports whether the request carries "Expect:
// 100-continue", the trigger for expectContinueReader's deferred write.
func (r *Request) ExpectsContinue() bool {
	return hasToken(r.Header.Get(hdr.Expect), "100-continue")
}

// ParseForm populates r.Form and r.PostForm from the URL query and, for a
// POST/PUT/PATCH with an urlencoded body, the request body. A multipart
// body is left to ParseMultipartForm.
func (r *Request) ParseForm() error {
	var err error
	if r.PostForm == nil {
		if r.Method == POST || r.Method == PUT || r.Method == PATCH {
			r.PostForm, err = parsePostForm(r)
		}
		if r.PostForm == nil {
			r.PostForm = make(url.Values)
		}
	}
	if r.Form == nil {
		if len(r.PostForm) > 0 {
			r.Form = make(url.Values)
			copyValues(r.Form, r.PostForm)
		}
		newValues, parseErr := url.ParseQuery(r.URL.RawQuery)
		if newValues == nil {
			newValues = make(url.Values)
		}
		if parseErr != nil && err == nil {
			err = parseErr
		}
		if r.Form == nil {
			r.Form = newValues
		} else {
			copyValues(r.Form, newValues)
		}
	}
	return err
}

func parsePostForm(r *Request) (vs url.Values, err error) {
	if r.Body == nil {
		return make(url.Values), nil
	}
	ct := r.Header.Get(hdr.ContentType)
	if ct == "" {
		ct = "application/octet-stream"
	}
	ct, _, _ = mime.MIMEParseMediaType(ct)
	switch ct {
	case "application/x-www-form-urlencoded":
		var reader = r.Body
		b, e := io.ReadAll(io.LimitReader(reader, 10<<20))
		if e != nil {
			if err == nil {
				err = e
			}
		}
		vs, e = url.ParseQuery(string(b))
		if err == nil {
			err = e
		}
	case "multipart/form-data":
		// handled by ParseMultipartForm; nothing to do for the Form itself.
		return make(url.Values), nil
	}
	if vs == nil {
		vs = make(url.Values)
	}
	return vs, err
}

// ParseMultipartForm parses a request body of type multipart/form-data;
// the whole request body is parsed and up to maxMemory bytes of its
// non-file parts are stored in memory.
func (r *Request) ParseMultipartForm(maxMemory int64) error {
	if r.MultipartForm == multipartByReader {
		return errMultipartHandledByReader
	}
	if r.Form == nil {
		if err := r.ParseForm(); err != nil {
			return err
		}
	}
	if r.MultipartForm != nil {
		return nil
	}

	mr, err := r.multipartReader()
	if err != nil {
		return err
	}

	f, err := mr.ReadForm(maxMemory)
	if err != nil {
		return err
	}

	if r.PostForm == nil {
		r.PostForm = make(url.Values)
	}
	for k, v := range f.Value {
		r.Form[k] = append(r.Form[k], v...)
		r.PostForm[k] = append(r.PostForm[k], v...)
	}
	r.MultipartForm = f
	return nil
}

// multipartReader builds the mime.MultipartReader used by ParseMultipartForm.
func (r *Request) multipartReader() (*mime.MultipartReader, error) {
	v := r.Header.Get(hdr.ContentType)
	if v == "" {
		return nil, ErrNotMultipart
	}
	d, params, err := mime.MIMEParseMediaType(v)
	if err != nil || !(d == "multipart/form-data" || d == "multipart/mixed") {
		return nil, ErrNotMultipart
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, ErrMissingBoundary
	}
	return mime.NewMultipartReader(r.Body, boundary), nil
}

// FormValue returns the first value for the named component of the query.
func (r *Request) FormValue(key string) string {
	if r.Form == nil {
		r.ParseMultipartForm(defaultMaxMemory)
	}
	if vs := r.Form[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// PostFormValue returns the first value for the named component of the POST,
// PATCH, or PUT request body.
func (r *Request) PostFormValue(key string) string {
	if r.PostForm == nil {
		r.ParseMultipartForm(defaultMaxMemory)
	}
	if vs := r.PostForm[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// FormFile returns the first file for the given form key.
func (r *Request) FormFile(key string) (mime.File, *mime.FileHeader, error) {
	if r.MultipartForm == multipartByReader {
		return nil, nil, errMultipartHandledByReader
	}
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
			return nil, nil, err
		}
	}
	if r.MultipartForm == nil || r.MultipartForm.File == nil {
		return nil, nil, ErrMissingFile
	}
	if fhs := r.MultipartForm.File[key]; len(fhs) > 0 {
		f, err := fhs[0].Open()
		return f, fhs[0], err
	}
	return nil, nil, ErrMissingFile
}

func copyValues(dst, src url.Values) {
	for k, vs := range src {
		dst[k] = append(dst[k], vs...)
	}
}
