/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import "sync"

// Handler is the single interface every capability/variant in the
// composition model implements — Leaf, Wrapper, Collection, Scoped
// are all just Handlers. A Leaf handles target directly; a Wrapper forwards
// to a nested Handler after/before doing its own work; a Collection fans
// target out to every child; a Scoped handler splits the call into a
// doScope/doHandle pair (see the chain package) but still satisfies this
// same interface from the outside.
type Handler interface {
	Handle(target string, base *BaseRequest, w ResponseWriter, r *Request) error
}

// DispatcherType records how a request reached a given Handler.Handle call,
// the same role Accept/Forward dispatcher types play for a servlet
// container.
type DispatcherType int

const (
	DispatcherRequest DispatcherType = iota
	DispatcherForward
	DispatcherInclude
	DispatcherAsync
	DispatcherError
)

func (d DispatcherType) String() string {
	switch d {
	case DispatcherForward:
		return "FORWARD"
	case DispatcherInclude:
		return "INCLUDE"
	case DispatcherAsync:
		return "ASYNC"
	case DispatcherError:
		return "ERROR"
	default:
		return "REQUEST"
	}
}

// BaseRequest is the per-Channel context threaded through the Handler
// chain. It is not itself a Request: it carries the dispatch metadata
// and attribute bag a Handler needs without requiring every Handler
// implementation to know about Channel internals.
type BaseRequest struct {
	channel    *Channel
	dispatcher DispatcherType

	mu      sync.RWMutex
	attrs   map[string]interface{}
	handled bool
}

func newBaseRequest(ch *Channel) *BaseRequest {
	return &BaseRequest{channel: ch, dispatcher: DispatcherRequest}
}

// Channel returns the Channel this request/response cycle belongs to.
func (b *BaseRequest) Channel() *Channel { return b.channel }

// Dispatcher reports how this Handle call was reached.
func (b *BaseRequest) Dispatcher() DispatcherType { return b.dispatcher }

// SetHandled marks the request as handled; a Collection with ShortCircuit
// set stops offering the target to further children once this is true.
func (b *BaseRequest) SetHandled(handled bool) { b.handled = handled }

// Handled reports whether some Handler on the chain has already claimed this request.
func (b *BaseRequest) Handled() bool { return b.handled }

// Attribute returns a value previously stored with SetAttribute on this
// BaseRequest. Forward and Include hand next a new BaseRequest whose
// attribute bag starts empty.
func (b *BaseRequest) Attribute(key string) (interface{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.attrs == nil {
		return nil, false
	}
	v, ok := b.attrs[key]
	return v, ok
}

func (b *BaseRequest) SetAttribute(key string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attrs == nil {
		b.attrs = make(map[string]interface{})
	}
	b.attrs[key] = value
}

// Forward re-dispatches target to next with DispatcherForward recorded,
// after resetting Handled so next gets a fair chance to claim it.
func (b *BaseRequest) Forward(next Handler, target string, w ResponseWriter, r *Request) error {
	child := &BaseRequest{channel: b.channel, dispatcher: DispatcherForward}
	return next.Handle(target, child, w, r)
}

// Include dispatches target to next with DispatcherInclude recorded; unlike
// Forward, the including Handler is expected to keep writing to w after
// Include returns.
func (b *BaseRequest) Include(next Handler, target string, w ResponseWriter, r *Request) error {
	child := &BaseRequest{channel: b.channel, dispatcher: DispatcherInclude}
	return next.Handle(target, child, w, r)
}
