/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// wakeKind distinguishes the two ways an ASYNC_WAIT Channel can be woken:
// an application redispatch (run the chain again, against a possibly new
// target/handler) or a completion (finish the response as-is).
type wakeKind int

const (
	wakeDispatch wakeKind = iota
	wakeComplete
	wakeError
)

type wakeSignal struct {
	kind    wakeKind
	target  string
	handler Handler
	err     error
}

// Channel is the request/response bridge: it owns the Request, the
// response writer, and the StateMachine, and is the thing the accepted
// connection's driving loop calls into once per logical HTTP exchange. A
// Channel outlives a single pass through the handler chain whenever the
// chain starts an async cycle; the Endpoint builds a new Channel for every
// request it reads.
type Channel struct {
	id       uuid.UUID
	endpoint *Endpoint
	server   *Server

	ctx       context.Context
	cancelCtx context.CancelFunc

	req  *Request
	resp *response
	base *BaseRequest
	sm   *StateMachine

	listeners []AsyncListener
	wake      chan wakeSignal

	log *logrus.Entry
}

func newChannel(ctx context.Context, ep *Endpoint, srv *Server, req *Request, resp *response) *Channel {
	id := uuid.New()
	ctx, cancel := context.WithCancel(ctx)
	log := srv.logger().WithFields(logrus.Fields{"channel": id.String()})
	ch := &Channel{
		id:        id,
		endpoint:  ep,
		server:    srv,
		ctx:       ctx,
		cancelCtx: cancel,
		req:       req,
		resp:      resp,
		sm:        newStateMachine(log),
		wake:      make(chan wakeSignal, 1),
		log:       log,
	}
	ch.base = newBaseRequest(ch)
	resp.ch = ch
	return ch
}

// ID is the uuid stamped on this Channel for logging/diagnostics.
func (ch *Channel) ID() uuid.UUID { return ch.id }

// Context is the Channel's cancellation context; it is cancelled when the
// response finishes or the connection goes away.
func (ch *Channel) Context() context.Context { return ch.ctx }

// Request returns the in-flight Request.
func (ch *Channel) Request() *Request { return ch.req }

// ResponseWriter returns the ResponseWriter for this Channel's response.
func (ch *Channel) ResponseWriter() ResponseWriter { return ch.resp }

// handle is the driving loop: handling() -> run the root Handler ->
// unhandle(). If the handler started an async cycle the loop parks on
// ch.wake until the application (or the timeout scheduler) dispatches or
// completes it.
func (ch *Channel) handle(root Handler) (err error) {
	target := ch.req.URL.Path
	if err = ch.sm.handling(); err != nil {
		return err
	}
	err = ch.runHandlerTarget(root, target)

loop:
	for {
		state, uerr := ch.sm.unhandle()
		if uerr != nil {
			return uerr
		}
		if state != StateAsyncWait {
			break
		}
		select {
		case sig := <-ch.wake:
			switch sig.kind {
			case wakeComplete, wakeError:
				err = sig.err
				if cerr := ch.sm.completeAsyncWait(); cerr != nil {
					return cerr
				}
				break loop
			case wakeDispatch:
				if rerr := ch.enterAsyncIO(); rerr != nil {
					return rerr
				}
				h := sig.handler
				if h == nil {
					h = root
				}
				t := sig.target
				if t == "" {
					t = target
				}
				err = ch.runHandlerTarget(h, t)
				continue
			}
		case <-ch.ctx.Done():
			err = ch.ctx.Err()
			if cerr := ch.sm.completeAsyncWait(); cerr != nil {
				return cerr
			}
			break loop
		}
	}

	return ch.finish(err)
}

// runHandlerTarget invokes root.Handle, converting a panic into a HandlerRuntime
// CoreError, scoped to a single Channel so one bad handler never takes
// the goroutine (and thus only this request) down without a response.
func (ch *Channel) runHandlerTarget(root Handler, target string) (herr error) {
	defer func() {
		if r := recover(); r != nil && r != ErrAbortHandler {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			ch.log.WithField("panic", r).Errorf("handler panic:\n%s", buf)
			herr = NewHandlerRuntime(panicToError(r))
		}
	}()
	return root.Handle(target, ch.base, ch.resp, ch.req)
}

func panicToError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &CoreError{Kind: KindHandlerRuntime, Reason: "panic"}
}

// enterAsyncIO transitions ASYNC_WOKEN -> ASYNC_IO, the brief sub-state the
// driving loop occupies while re-entering the handler chain after a wake.
func (ch *Channel) enterAsyncIO() error {
	ch.sm.mu.Lock()
	defer ch.sm.mu.Unlock()
	if ch.sm.state != StateAsyncWoken {
		return nil
	}
	ch.sm.state = StateAsyncIO
	return nil
}

// StartAsync suspends the current pass: the calling Handler returns without
// the request being finished, and timeout arms a TimeoutTask that fires
// OnTimeout on every registered AsyncListener.
func (ch *Channel) StartAsync(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultAsyncTimeout
	}
	task := ch.server.timeouts().arm(timeout, func() { ch.onTimeout() })
	if err := ch.sm.startAsync(task); err != nil {
		task.cancel()
		return err
	}
	ev := &AsyncEvent{Channel: ch}
	for _, l := range ch.listeners {
		l.OnStartAsync(ev)
	}
	return nil
}

// AddAsyncListener registers l to observe this Channel's async cycle.
func (ch *Channel) AddAsyncListener(l AsyncListener) {
	ch.listeners = append(ch.listeners, l)
}

// Dispatch wakes an ASYNC_WAIT Channel and re-enters the handler chain
// against handler (or the original root Handler, if nil) with target (or
// the original target, if empty) — the async wait, wake, dispatch path.
func (ch *Channel) Dispatch(target string, handler Handler) error {
	woken, err := ch.sm.dispatch()
	if err != nil {
		return err
	}
	if woken {
		ch.wake <- wakeSignal{kind: wakeDispatch, target: target, handler: handler}
	}
	return nil
}

// Complete finishes an async cycle: ASYNC_WAIT -> ASYNC_WOKEN -> COMPLETING,
// and the driving loop writes the response.
func (ch *Channel) Complete() error {
	woken, err := ch.sm.complete()
	if err != nil {
		return err
	}
	if woken {
		ch.wake <- wakeSignal{kind: wakeComplete}
	}
	return nil
}

// ExtendTimeout re-arms the current async cycle's TimeoutTask for another
// d. Called from an OnTimeout listener it does not by itself stop the
// expiry in progress: onTimeout still errors the cycle out.
func (ch *Channel) ExtendTimeout(d time.Duration) {
	ch.sm.mu.Lock()
	task := ch.sm.asyncTask
	ch.sm.mu.Unlock()
	if task != nil {
		task.reset(d)
	}
}

// onTimeout is the TimeoutTask callback armed by StartAsync. It
// fires OnTimeout on every listener; unless one of them has called
// Dispatch or Complete, the cycle is then errored out with KindTimeout
// (ExtendTimeout alone does not prevent this).
func (ch *Channel) onTimeout() {
	mustDispatch, err := ch.sm.onTimeout()
	if err != nil {
		return
	}
	ev := &AsyncEvent{Channel: ch}
	for _, l := range ch.listeners {
		l.OnTimeout(ev)
	}
	if err := ch.sm.asyncError(); err != nil {
		return
	}
	terr := NewTimeout("async cycle timed out")
	errEv := &AsyncEvent{Channel: ch, Err: terr}
	for _, l := range ch.listeners {
		l.OnError(errEv)
	}
	if mustDispatch {
		ch.wake <- wakeSignal{kind: wakeError, err: terr}
	}
}

// finish writes err (if any) through the error handler, finalizes the
// response, moves COMPLETING -> COMPLETED, and fires OnComplete on every
// registered AsyncListener exactly once. A Channel whose response was
// hijacked has already moved to UPGRADED (see response.Hijack) and owns
// no more of the Endpoint's buffers, so finishRequest and the listener
// fan-out are skipped — there is no committed response to finalize.
func (ch *Channel) finish(err error) error {
	if ch.endpoint.hijacked() {
		ch.cancelCtx()
		return err
	}
	if err != nil {
		ch.server.errorHandler().Handle(ch, err)
	}
	ch.resp.finishRequest()
	if serr := ch.sm.onComplete(); serr != nil {
		return serr
	}
	ev := &AsyncEvent{Channel: ch, Err: err}
	for _, l := range ch.listeners {
		l.OnComplete(ev)
	}
	ch.cancelCtx()
	return err
}

// recycle resets the Channel's StateMachine to IDLE. Endpoint.Serve does
// not call it: it builds a new Channel for each request.
func (ch *Channel) recycle() error {
	return ch.sm.recycle()
}
