/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package sniff

// sig is implemented by each content signature matcher: exactSig for a
// fixed byte prefix, maskedSig for a masked prefix compare, and textSig
// for the final "is this just text" fallback.
type sig interface {
	// match returns the MIME type if data matches the signature, else "".
	// firstNonWS is the offset of the first non-whitespace byte
	// in data, needed by the HTML and text signatures.
	match(data []byte, firstNonWS int) string
}

type exactSig struct {
	sig []byte
	ct  string
}

type maskedSig struct {
	mask, pat []byte
	ct        string
	skipWS    bool
}

type textSig struct{}
