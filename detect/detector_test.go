/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package detect

import (
	"bufio"
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/badu/httpcore"
)

// stubFactory lets tests script a fixed sequence of Detect verdicts and
// records whether NewConnection was ever called.
type stubFactory struct {
	name    string
	verdict func(peeked []byte) core.DetectResult
	built   *bool
}

func (s *stubFactory) Detect(peeked []byte) core.DetectResult { return s.verdict(peeked) }

func (s *stubFactory) NewConnection(raw net.Conn, br *bufio.Reader, srv *core.Server) (core.Connection, error) {
	if s.built != nil {
		*s.built = true
	}
	return nil, nil
}

func newPipeConn(data []byte) net.Conn {
	client, server := net.Pipe()
	go func() {
		client.Write(data)
	}()
	return server
}

func TestDetectorRecognizesFirstMatchingFactory(t *testing.T) {
	built := false
	always := &stubFactory{verdict: func([]byte) core.DetectResult { return core.DetectRecognized }, built: &built}

	d := NewDetector(0, nil, always)
	conn := newPipeConn([]byte("GET / HTTP/1.1\r\n\r\n"))
	defer conn.Close()

	_, err := d.NewConnection(conn, bufio.NewReader(conn), nil)
	require.NoError(t, err)
	assert.True(t, built)
}

func TestDetectorEliminatesUnrecognizedAndFallsBackToFallback(t *testing.T) {
	built := false
	never := &stubFactory{verdict: func([]byte) core.DetectResult { return core.DetectUnrecognized }}
	fallback := &stubFactory{verdict: func([]byte) core.DetectResult { return core.DetectUnrecognized }, built: &built}

	d := NewDetector(0, fallback, never)
	conn := newPipeConn([]byte("X"))
	defer conn.Close()

	_, err := d.NewConnection(conn, bufio.NewReader(conn), nil)
	require.NoError(t, err)
	assert.True(t, built)
}

func TestDetectorFailsWhenLiveFactoryNeverDecidesAndBufferExhausted(t *testing.T) {
	stuck := &stubFactory{verdict: func([]byte) core.DetectResult { return core.DetectNeedMoreData }}
	fallbackCalled := false
	fallback := &stubFactory{verdict: func([]byte) core.DetectResult { return core.DetectRecognized }, built: &fallbackCalled}

	d := NewDetector(4, fallback, stuck)
	conn := newPipeConn(bytes.Repeat([]byte("a"), 4))
	defer conn.Close()

	_, err := d.NewConnection(conn, bufio.NewReader(conn), nil)
	require.Error(t, err)
	assert.False(t, fallbackCalled, "fallback must not be consulted when a factory stayed undecided")

	ce, ok := err.(*core.CoreError)
	require.True(t, ok)
	assert.Equal(t, core.KindDetectionFailed, ce.Kind)
}

func TestDetectorFailsWhenNoFactoryAndNoFallback(t *testing.T) {
	never := &stubFactory{verdict: func([]byte) core.DetectResult { return core.DetectUnrecognized }}

	d := NewDetector(0, nil, never)
	conn := newPipeConn([]byte("X"))
	defer conn.Close()

	_, err := d.NewConnection(conn, bufio.NewReader(conn), nil)
	require.Error(t, err)
}
