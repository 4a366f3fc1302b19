/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"strings"

	"github.com/badu/httpcore/hdr"
)

func isTokenBoundary(b byte) bool {
	return b == ' ' || b == ',' || b == '\t'
}

// hasToken reports whether token appears within v, ASCII case-insensitive,
// with space or comma boundaries. token must be all lowercase; v may
// contain mixed case.
func hasToken(v, token string) bool {
	if len(token) > len(v) || token == "" {
		return false
	}
	if v == token {
		return true
	}
	for sp := 0; sp <= len(v)-len(token); sp++ {
		if b := v[sp]; b != token[0] && b|0x20 != token[0] {
			continue
		}
		if sp > 0 && !isTokenBoundary(v[sp-1]) {
			continue
		}
		if endPos := sp + len(token); endPos != len(v) && !isTokenBoundary(v[endPos]) {
			continue
		}
		if strings.EqualFold(v[sp:sp+len(token)], token) {
			return true
		}
	}
	return false
}

// IsNotToken reports whether r cannot appear in an HTTP token, the
// complement of hdr.IsTokenRune used by strings.IndexFunc scans.
func IsNotToken(r rune) bool {
	return !hdr.IsTokenRune(r)
}

// ValidMethod reports whether method is a valid HTTP method token.
func ValidMethod(method string) bool {
	return len(method) > 0 && strings.IndexFunc(method, IsNotToken) == -1
}

// ParseHTTPVersion parses a HTTP version string according to RFC 7230,
// section 2.6. "HTTP/1.0" returns (1, 0, true).
func ParseHTTPVersion(vers string) (major, minor int, ok bool) {
	const Big = 1000000
	switch vers {
	case "HTTP/1.1":
		return 1, 1, true
	case "HTTP/1.0":
		return 1, 0, true
	}
	if !strings.HasPrefix(vers, "HTTP/") {
		return 0, 0, false
	}
	dot := strings.Index(vers, ".")
	if dot < 0 {
		return 0, 0, false
	}
	major, err := parseDecimalUint(vers[5:dot])
	if err != nil || major < 0 || major > Big {
		return 0, 0, false
	}
	minor, err = parseDecimalUint(vers[dot+1:])
	if err != nil || minor < 0 || minor > Big {
		return 0, 0, false
	}
	return major, minor, true
}

// parseDecimalUint parses s, which must be a sequence of decimal digits,
// as an unsigned integer, avoiding strconv to keep the surface minimal.
func parseDecimalUint(s string) (int, error) {
	if s == "" {
		return -1, &badStringError{"empty number", s}
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1, &badStringError{"invalid number", s}
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// parseRequestLine parses "GET /foo HTTP/1.1" into its three parts.
func parseRequestLine(line string) (string, string, string, bool) {
	s1 := strings.Index(line, " ")
	s2 := strings.Index(line[s1+1:], " ")
	if s1 < 0 || s2 < 0 {
		return "", "", "", false
	}
	s2 += s1 + 1
	return line[:s1], line[s1+1 : s2], line[s2+1:], true
}
