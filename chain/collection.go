/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package chain

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	core "github.com/badu/httpcore"
)

// Collection holds an ordered list of child Handlers. Every child is
// offered target in order; a child marking the request handled does not,
// by default, stop later children from also being offered it. Any error raised by a child is collected; after the loop, one
// collected error is returned unwrapped, several are wrapped in an
// aggregate.
type Collection struct {
	Lifecycle

	mu       sync.RWMutex
	children []core.Handler

	// ShortCircuit opts into a non-default variant:
	// stop offering target to further children once base.Handled() is true.
	ShortCircuit bool
}

// NewCollection returns a Collection over children, in the given order.
func NewCollection(children ...core.Handler) *Collection {
	return &Collection{children: append([]core.Handler(nil), children...)}
}

// AddChild appends h to the collection. Forbidden once started unless
// MutableWhileRunning is set.
func (c *Collection) AddChild(h core.Handler) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	c.mu.Lock()
	c.children = append(c.children, h)
	c.mu.Unlock()
	return nil
}

// Children returns a snapshot of the current child list.
func (c *Collection) Children() []core.Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Handler, len(c.children))
	copy(out, c.children)
	return out
}

func (c *Collection) Handle(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
	var errs *multierror.Error
	for _, child := range c.Children() {
		if err := child.Handle(target, base, w, r); err != nil {
			errs = multierror.Append(errs, err)
		}
		if c.ShortCircuit && base.Handled() {
			break
		}
	}
	return unwrapSingle(errs)
}

// unwrapSingle implements the "one exception → unwrapped; many → wrapped"
// rule; multierror.Error always renders even a single error with its own
// "1 error occurred" framing, which this bypasses.
func unwrapSingle(errs *multierror.Error) error {
	if errs == nil || len(errs.Errors) == 0 {
		return nil
	}
	if len(errs.Errors) == 1 {
		return errs.Errors[0]
	}
	return errs
}

// Destroy destroys every child, then clears the list.
func (c *Collection) Destroy() error {
	if c.Started() {
		return ErrStarted
	}
	for _, child := range c.Children() {
		if d, ok := child.(interface{ Destroy() error }); ok {
			if err := d.Destroy(); err != nil {
				return err
			}
		}
	}
	c.mu.Lock()
	c.children = nil
	c.mu.Unlock()
	return nil
}
