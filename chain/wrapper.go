/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package chain

import (
	"sync"

	core "github.com/badu/httpcore"
)

// Wrapper holds exactly one child Handler and forwards to it, optionally
// doing work before and/or after.
type Wrapper struct {
	Lifecycle

	mu    sync.RWMutex
	child core.Handler

	// Before runs before forwarding to the child; a non-nil error aborts
	// without forwarding. After runs once the child returns without error.
	Before func(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error
	After  func(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error
}

// NewWrapper returns a Wrapper around child.
func NewWrapper(child core.Handler) *Wrapper {
	return &Wrapper{child: child}
}

// SetChild replaces the wrapped Handler. Forbidden once started unless
// MutableWhileRunning is set.
func (w *Wrapper) SetChild(child core.Handler) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	w.mu.Lock()
	w.child = child
	w.mu.Unlock()
	return nil
}

// Child returns the currently wrapped Handler.
func (w *Wrapper) Child() core.Handler {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.child
}

func (w *Wrapper) Handle(target string, base *core.BaseRequest, rw core.ResponseWriter, r *core.Request) error {
	if w.Before != nil {
		if err := w.Before(target, base, rw, r); err != nil {
			return err
		}
	}

	if child := w.Child(); child != nil {
		if err := child.Handle(target, base, rw, r); err != nil {
			return err
		}
	}

	if w.After != nil {
		return w.After(target, base, rw, r)
	}
	return nil
}

// Destroy destroys the child first, then clears the reference.
func (w *Wrapper) Destroy() error {
	if w.Started() {
		return ErrStarted
	}
	if d, ok := w.Child().(interface{ Destroy() error }); ok {
		if err := d.Destroy(); err != nil {
			return err
		}
	}
	w.mu.Lock()
	w.child = nil
	w.mu.Unlock()
	return nil
}
