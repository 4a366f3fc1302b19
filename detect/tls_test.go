/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	core "github.com/badu/httpcore"
)

func TestTLSFactoryDetectHeuristic(t *testing.T) {
	f := &TLSFactory{}

	cases := []struct {
		name   string
		peeked []byte
		want   core.DetectResult
	}{
		{"too short", []byte{0x16}, core.DetectNeedMoreData},
		{"handshake record", []byte{0x16, 0x03, 0x01}, core.DetectRecognized},
		{"alert record", []byte{0x15, 0x03, 0x03}, core.DetectRecognized},
		{"plain http", []byte("GET /"), core.DetectUnrecognized},
		{"wrong minor-family byte", []byte{0x16, 0x02, 0x00}, core.DetectUnrecognized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.Detect(tc.peeked))
		})
	}
}
