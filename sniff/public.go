/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package sniff

const sniffLen = 512

func (m *maskedSig) match(data []byte, firstNonWS int) string {
	if m.skipWS {
		data = data[firstNonWS:]
	}
	if len(data) < len(m.mask) {
		return ""
	}
	for i, mask := range m.mask {
		db := data[i] & mask
		if db != m.pat[i] {
			return ""
		}
	}
	return m.ct
}

// sniffSignatures is the table from the WHATWG MIME Sniffing Standard,
// section 6, tried in order against the first sniffLen bytes of a body.
var sniffSignatures = []sig{
	&maskedSig{
		mask:   []byte("\xFF\xFF\xDF\xDF\xDF\xDF\xDF\xDF\xDF\x3E"),
		pat:    []byte("<!DOCTYPE HTML"),
		skipWS: true,
		ct:     "text/html; charset=utf-8",
	},
	&maskedSig{
		mask:   []byte("\xFF\xFF\xDF\xDF\xDF\x3E"),
		pat:    []byte("<HTML "),
		skipWS: true,
		ct:     "text/html; charset=utf-8",
	},
	&maskedSig{
		mask:   []byte("\xFF\xFF\xDF\xDF\xDF\x3E"),
		pat:    []byte("<HEAD "),
		skipWS: true,
		ct:     "text/html; charset=utf-8",
	},
	&maskedSig{
		mask:   []byte("\xFF\xFF\xDF\xDF\xDF\xDF\xDF\x3E"),
		pat:    []byte("<SCRIPT"),
		skipWS: true,
		ct:     "text/html; charset=utf-8",
	},
	&maskedSig{
		mask:   []byte("\xFF\xFF\xDF\xDF\xDF\x3E"),
		pat:    []byte("<IFRAME"),
		skipWS: true,
		ct:     "text/html; charset=utf-8",
	},
	&maskedSig{
		mask:   []byte("\xFF\xFF\xDF\xDF\x3E"),
		pat:    []byte("<H1 "),
		skipWS: true,
		ct:     "text/html; charset=utf-8",
	},
	&maskedSig{
		mask:   []byte("\xFF\xFF\xDF\xDF\xDF\x3E"),
		pat:    []byte("<DIV "),
		skipWS: true,
		ct:     "text/html; charset=utf-8",
	},
	&maskedSig{
		mask:   []byte("\xFF\xFF\xFF\x3E"),
		pat:    []byte("<A "),
		skipWS: true,
		ct:     "text/html; charset=utf-8",
	},
	&maskedSig{
		mask:   []byte("\xFF\xFF\xFF\xDF\x3E"),
		pat:    []byte("<P "),
		skipWS: true,
		ct:     "text/html; charset=utf-8",
	},
	&maskedSig{
		mask:   []byte("\xFF\xFF\xFF\xFF\xFF\xFF"),
		pat:    []byte("<?xml"),
		skipWS: true,
		ct:     "text/xml; charset=utf-8",
	},
	&exactSig{sig: []byte("%PDF-"), ct: "application/pdf"},
	&exactSig{sig: []byte("%!PS-Adobe-"), ct: "application/postscript"},
	// UTF BOMs.
	&maskedSig{
		mask: []byte("\xFF\xFF\x00\x00"),
		pat:  []byte("\xFE\xFF\x00\x00"),
		ct:   "text/plain; charset=utf-16be",
	},
	&maskedSig{
		mask: []byte("\xFF\xFF\x00\x00"),
		pat:  []byte("\xFF\xFE\x00\x00"),
		ct:   "text/plain; charset=utf-16le",
	},
	&maskedSig{
		mask: []byte("\xFF\xFF\xFF\x00"),
		pat:  []byte("\xEF\xBB\xBF\x00"),
		ct:   "text/plain; charset=utf-8",
	},
	// Image types.
	&exactSig{sig: []byte("GIF87a"), ct: "image/gif"},
	&exactSig{sig: []byte("GIF89a"), ct: "image/gif"},
	&exactSig{sig: []byte("\x89PNG\x0D\x0A\x1A\x0A"), ct: "image/png"},
	&exactSig{sig: []byte("\xFF\xD8\xFF"), ct: "image/jpeg"},
	&exactSig{sig: []byte("BM"), ct: "image/bmp"},
	&maskedSig{
		mask: []byte("\xFF\xFF\xFF\xFF\x00\x00\x00\x00\xFF\xFF\xFF\xFF\xFF\xFF"),
		pat:  []byte("RIFF\x00\x00\x00\x00WEBPVP"),
		ct:   "image/webp",
	},
	// Audio and video types.
	&maskedSig{
		mask: []byte("\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFF"),
		pat:  []byte(".snd"),
		ct:   "audio/basic",
	},
	&maskedSig{
		mask: []byte("\xFF\xFF\xFF\xFF\x00\x00\x00\x00\xFF\xFF\xFF\xFF"),
		pat:  []byte("RIFF\x00\x00\x00\x00AVI "),
		ct:   "video/avi",
	},
	&maskedSig{
		mask: []byte("\xFF\xFF\xFF\xFF\x00\x00\x00\x00\xFF\xFF\xFF\xFF"),
		pat:  []byte("RIFF\x00\x00\x00\x00WAVE"),
		ct:   "audio/wave",
	},
	// Archive types.
	&exactSig{sig: []byte("\x1F\x8B\x08"), ct: "application/x-gzip"},
	&exactSig{sig: []byte("PK\x03\x04"), ct: "application/zip"},
	&exactSig{sig: []byte("Rar \x1A\x07\x00"), ct: "application/x-rar-compressed"},

	textSig{}, // should be last
}

// DetectContentType implements the algorithm described in the WHATWG
// MIME Sniffing Standard to determine the Content-Type of the given
// data. It considers at most the first 512 bytes of data. It always
// returns a valid MIME type: if it cannot determine a more specific
// one, it returns "application/octet-stream".
func DetectContentType(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}

	firstNonWS := 0
	for ; firstNonWS < len(data) && isWS(data[firstNonWS]); firstNonWS++ {
	}

	for _, sg := range sniffSignatures {
		if ct := sg.match(data, firstNonWS); ct != "" {
			return ct
		}
	}

	return "application/octet-stream"
}

// isWS reports whether the provided byte is a whitespace byte (0xWS)
// per RFC 7230 section 3.2.3.
func isWS(b byte) bool {
	switch b {
	case '\t', '\n', '\x0c', '\r', ' ':
		return true
	}
	return false
}
