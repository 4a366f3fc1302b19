/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package mux

import (
	"net"
	"path"
	"strings"

	. "github.com/badu/httpcore"
	"github.com/badu/httpcore/hdr"
)

// NewServeMux allocates and returns a new ServeMux.
func NewServeMux() *ServeMux { return new(ServeMux) }

// cleanPath returns the canonical path for p, eliminating . and ..
// elements, the same normalization stdlib's ServeMux applies before
// matching or redirecting.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	// path.Clean removes trailing slash except for root;
	// put the trailing slash back if necessary.
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// stripHostPort strips the port, if any, from a Host header or URL.Host
// value h, leaving either a bare hostname or an IPv6 literal in brackets.
func stripHostPort(h string) string {
	if !strings.Contains(h, ":") {
		return h
	}
	host, _, err := net.SplitHostPort(h)
	if err != nil {
		return h
	}
	return host
}

// pathMatch reports whether path matches the registered pattern,
// following stdlib's ServeMux rule: an exact match, or, for a pattern
// ending in "/", path has pattern as a prefix.
func pathMatch(pattern, path string) bool {
	if len(pattern) == 0 {
		return false
	}
	n := len(pattern)
	if pattern[n-1] != '/' {
		return pattern == path
	}
	return len(path) >= n && path[:n] == pattern
}

// find is the core longest-match lookup shared by Match and the
// registration's overlap checks.
func (mux *ServeMux) find(path string) (h Handler, pattern string) {
	var n = 0
	for k, v := range mux.m {
		if !pathMatch(k, path) {
			continue
		}
		if h == nil || len(k) > n {
			n = len(k)
			h = v.h
			pattern = v.pattern
		}
	}
	return
}

// redirectHandler answers every request with a 301 to url — the handler
// ServeMux installs for a subtree registered without its trailing slash
// when a client asks for the subtree root.
type redirectHandler struct {
	url  string
	code int
}

func (rh *redirectHandler) Handle(_ string, _ *BaseRequest, w ResponseWriter, r *Request) error {
	u := rh.url
	if q := r.URL.RawQuery; q != "" {
		u += "?" + q
	}
	w.Header().Set(hdr.Location, u)
	w.WriteHeader(rh.code)
	return nil
}

// Match returns the handler to use for r, along with the registered
// pattern that matched. For any method but CONNECT, Match first cleans
// r.URL.Path and returns a redirect when the clean form differs; otherwise
// it consults r.Host (when host patterns are registered), then r.URL.Path.
//
// If no handler applies, Match returns (nil, "").
func (mux *ServeMux) Match(r *Request) (Handler, string) {
	mux.mu.RLock()
	defer mux.mu.RUnlock()

	if r.Method != CONNECT {
		if p := cleanPath(r.URL.Path); p != r.URL.Path {
			_, pattern := mux.find(p)
			u := *r.URL
			u.Path = p
			return &redirectHandler{url: u.String(), code: StatusMovedPermanently}, pattern
		}
	}

	host := stripHostPort(r.Host)
	if mux.hosts {
		if h, pattern := mux.find(host + r.URL.Path); h != nil {
			return h, pattern
		}
	}
	return mux.find(r.URL.Path)
}

// Register registers handler for the given pattern, mirroring stdlib
// ServeMux.Handle (renamed so it doesn't collide with the Handler
// interface's own Handle method, which ServeMux must also implement).
func (mux *ServeMux) Register(pattern string, handler Handler) {
	mux.mu.Lock()
	defer mux.mu.Unlock()

	if pattern == "" {
		panic("http: invalid pattern")
	}
	if handler == nil {
		panic("http: nil handler")
	}
	if existing, exist := mux.m[pattern]; exist && existing.explicit {
		panic("http: multiple registrations for " + pattern)
	}

	if mux.m == nil {
		mux.m = make(map[string]muxEntry)
	}
	mux.m[pattern] = muxEntry{h: handler, pattern: pattern, explicit: true}

	if pattern[0] != '/' {
		mux.hosts = true
	}

	// Helpful behavior: register an implicit permanent redirect for a
	// missing trailing slash on a subtree pattern. For pattern
	// "/tree/", adding an implicit "/tree" -> "/tree/" redirect.
	n := len(pattern)
	if n > 0 && pattern[n-1] == '/' {
		star := pattern[:n-1]
		if _, exist := mux.m[star]; !exist {
			mux.m[star] = muxEntry{h: &redirectHandler{url: pattern, code: StatusMovedPermanently}, pattern: pattern}
		}
	}
}

// RegisterFunc registers fn as the handler for pattern.
func (mux *ServeMux) RegisterFunc(pattern string, fn func(target string, base *BaseRequest, w ResponseWriter, r *Request) error) {
	mux.Register(pattern, HandlerFunc(fn))
}

// Handle implements Handler: it looks up the best-matching registration
// for r.URL.Path and forwards target to it, acting as a Leaf in a
// composed handler chain.
func (mux *ServeMux) Handle(target string, base *BaseRequest, w ResponseWriter, r *Request) error {
	h, _ := mux.Match(r)
	if h == nil {
		h = notFoundHandler{}
	}
	return h.Handle(target, base, w, r)
}

// notFoundHandler answers 404 for any path with no registered handler.
type notFoundHandler struct{}

func (notFoundHandler) Handle(_ string, _ *BaseRequest, w ResponseWriter, _ *Request) error {
	w.WriteHeader(StatusNotFound)
	_, err := w.Write([]byte("404 page not found"))
	return err
}
