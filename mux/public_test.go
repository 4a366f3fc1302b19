/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package mux

import (
	"testing"

	core "github.com/badu/httpcore"
	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/url"
)

func newTestRequest(method, host, path string) *core.Request {
	return &core.Request{
		Method: method,
		Host:   host,
		URL:    &url.URL{Path: path},
	}
}

func handlerNamed(name string) core.Handler {
	return core.HandlerFunc(func(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
		return nil
	})
}

func TestServeMuxExactMatch(t *testing.T) {
	m := NewServeMux()
	m.Register("/foo", handlerNamed("foo"))
	m.Register("/foo/bar", handlerNamed("foobar"))

	_, pattern := m.Match(newTestRequest("GET", "example.com", "/foo"))
	if pattern != "/foo" {
		t.Fatalf("got pattern %q, want /foo", pattern)
	}
}

func TestServeMuxLongestPrefixWins(t *testing.T) {
	m := NewServeMux()
	m.Register("/images/", handlerNamed("images"))
	m.Register("/images/thumbnails/", handlerNamed("thumbs"))

	_, pattern := m.Match(newTestRequest("GET", "example.com", "/images/thumbnails/cat.png"))
	if pattern != "/images/thumbnails/" {
		t.Fatalf("got pattern %q, want /images/thumbnails/", pattern)
	}

	_, pattern = m.Match(newTestRequest("GET", "example.com", "/images/other.png"))
	if pattern != "/images/" {
		t.Fatalf("got pattern %q, want /images/", pattern)
	}
}

func TestServeMuxNoMatchReturnsNil(t *testing.T) {
	m := NewServeMux()
	m.Register("/foo", handlerNamed("foo"))

	h, pattern := m.Match(newTestRequest("GET", "example.com", "/bar"))
	if h != nil || pattern != "" {
		t.Fatalf("got (%v, %q), want (nil, \"\")", h, pattern)
	}
}

func TestServeMuxHandleFallsBackTo404(t *testing.T) {
	m := NewServeMux()
	rec := &recordingWriter{header: hdr.Header{}}
	err := m.Handle("/missing", &core.BaseRequest{}, rec, newTestRequest("GET", "example.com", "/missing"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.status != core.StatusNotFound {
		t.Fatalf("got status %d, want %d", rec.status, core.StatusNotFound)
	}
}

func TestServeMuxImplicitSubtreeRedirect(t *testing.T) {
	m := NewServeMux()
	m.Register("/tree/", handlerNamed("tree"))

	h, pattern := m.Match(newTestRequest("GET", "example.com", "/tree"))
	if h == nil {
		t.Fatal("expected an implicit redirect handler for the bare subtree root")
	}
	if pattern != "/tree/" {
		t.Fatalf("got pattern %q, want /tree/", pattern)
	}

	rec := &recordingWriter{header: hdr.Header{}}
	if err := h.Handle("/tree", &core.BaseRequest{}, rec, newTestRequest("GET", "example.com", "/tree")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.status != core.StatusMovedPermanently {
		t.Fatalf("got status %d, want %d", rec.status, core.StatusMovedPermanently)
	}
	if got := rec.header.Get("Location"); got != "/tree/" {
		t.Fatalf("got Location %q, want /tree/", got)
	}
}

func TestServeMuxCleanPathRedirect(t *testing.T) {
	m := NewServeMux()
	m.Register("/foo", handlerNamed("foo"))

	h, _ := m.Match(newTestRequest("GET", "example.com", "/foo/../foo"))
	if h == nil {
		t.Fatal("expected a redirect handler for an uncleaned path")
	}

	rec := &recordingWriter{header: hdr.Header{}}
	if err := h.Handle("/foo/../foo", &core.BaseRequest{}, rec, newTestRequest("GET", "example.com", "/foo/../foo")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.status != core.StatusMovedPermanently {
		t.Fatalf("got status %d, want %d", rec.status, core.StatusMovedPermanently)
	}
	if got := rec.header.Get("Location"); got != "/foo" {
		t.Fatalf("got Location %q, want /foo", got)
	}
}

func TestServeMuxRegisterPanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Register to panic on a duplicate explicit pattern")
		}
	}()
	m := NewServeMux()
	m.Register("/foo", handlerNamed("one"))
	m.Register("/foo", handlerNamed("two"))
}

func TestServeMuxRegisterPanicsOnNilHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Register to panic on a nil handler")
		}
	}()
	m := NewServeMux()
	m.Register("/foo", nil)
}

// recordingWriter is a minimal core.ResponseWriter stub for asserting on
// status code and headers without any network plumbing.
type recordingWriter struct {
	header hdr.Header
	status int
	body   []byte
}

func (w *recordingWriter) Header() hdr.Header { return w.header }

func (w *recordingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = core.StatusOK
	}
	w.body = append(w.body, p...)
	return len(p), nil
}

func (w *recordingWriter) WriteHeader(status int) { w.status = status }
