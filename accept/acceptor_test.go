/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package accept

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/badu/httpcore"
)

// fakeConnection is a core.Connection that blocks in Serve until its ctx is
// cancelled, the way a real Endpoint blocks until Close or a graceful
// shutdown signal arrives.
type fakeConnection struct {
	raw    net.Conn
	served chan struct{}
}

func (f *fakeConnection) Serve(ctx context.Context) {
	defer close(f.served)
	<-ctx.Done()
}

func (f *fakeConnection) Close() error           { return f.raw.Close() }
func (f *fakeConnection) State() core.ConnState  { return core.StateActive }
func (f *fakeConnection) RemoteAddr() net.Addr   { return f.raw.RemoteAddr() }

type fakeFactory struct {
	built chan *fakeConnection
}

func (f *fakeFactory) Detect(_ []byte) core.DetectResult { return core.DetectRecognized }

func (f *fakeFactory) NewConnection(raw net.Conn, _ *bufio.Reader, _ *core.Server) (core.Connection, error) {
	conn := &fakeConnection{raw: raw, served: make(chan struct{})}
	f.built <- conn
	return conn, nil
}

func TestAcceptorDispatchesAcceptedConnections(t *testing.T) {
	factory := &fakeFactory{built: make(chan *fakeConnection, 4)}
	srv := core.NewServer()

	a := New(srv, factory, Options{Addr: "127.0.0.1:0", Acceptors: 1})
	require.NoError(t, a.Start())
	defer a.Stop(context.Background())

	accepted := make(chan struct{}, 1)
	handler := core.ListenTestEvent(core.EventConnectionAccepted, func() {
		select {
		case accepted <- struct{}{}:
		default:
		}
	})
	defer handler.Kill()

	conn, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case fc := <-factory.built:
		assert.NotNil(t, fc)
	case <-time.After(2 * time.Second):
		t.Fatal("connection factory never invoked")
	}

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("EventConnectionAccepted never fired")
	}
}

func TestAcceptorStopDrainsGraceful(t *testing.T) {
	factory := &fakeFactory{built: make(chan *fakeConnection, 1)}
	srv := core.NewServer()

	a := New(srv, factory, Options{Addr: "127.0.0.1:0", Acceptors: 1})
	require.NoError(t, a.Start())

	drained := false
	a.AddGraceful(gracefulFunc(func(ctx context.Context) error {
		drained = true
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
	assert.True(t, drained)
}

type gracefulFunc func(ctx context.Context) error

func (f gracefulFunc) Drain(ctx context.Context) error { return f(ctx) }
