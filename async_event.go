/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

// AsyncEvent is passed to an AsyncListener's callbacks; it carries the
// Channel the event belongs to and, for OnError, the CoreError describing
// why.
type AsyncEvent struct {
	Channel *Channel
	Err     error
}

// AsyncListener lets a handler observe the lifecycle of an async cycle it
// started with Channel.StartAsync. All four callbacks run on
// whatever goroutine drives the transition; a listener must not block.
type AsyncListener interface {
	// OnStartAsync is called synchronously from Channel.StartAsync, once per
	// call, on every listener registered at that moment.
	OnStartAsync(ev *AsyncEvent)
	// OnComplete is called once, after the Channel's response has been
	// finalized, with ev.Err set to the error that ended the request, if any.
	OnComplete(ev *AsyncEvent)
	// OnTimeout is called when the armed TimeoutTask fires. Calling
	// Channel.ExtendTimeout from here re-arms the task for a later fire but
	// does not stop this expiry from erroring the cycle.
	OnTimeout(ev *AsyncEvent)
	// OnError is called once the cycle has moved to ERRORING, with ev.Err set.
	OnError(ev *AsyncEvent)
}

// AsyncListenerFuncs is an adapter letting a caller implement AsyncListener
// with plain function values, any of which may be left nil.
type AsyncListenerFuncs struct {
	StartAsync func(*AsyncEvent)
	Complete   func(*AsyncEvent)
	Timeout    func(*AsyncEvent)
	Error      func(*AsyncEvent)
}

func (f AsyncListenerFuncs) OnStartAsync(ev *AsyncEvent) {
	if f.StartAsync != nil {
		f.StartAsync(ev)
	}
}

func (f AsyncListenerFuncs) OnComplete(ev *AsyncEvent) {
	if f.Complete != nil {
		f.Complete(ev)
	}
}

func (f AsyncListenerFuncs) OnTimeout(ev *AsyncEvent) {
	if f.Timeout != nil {
		f.Timeout(ev)
	}
}

func (f AsyncListenerFuncs) OnError(ev *AsyncEvent) {
	if f.Error != nil {
		f.Error(ev)
	}
}
