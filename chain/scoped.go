/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package chain

import core "github.com/badu/httpcore"

// Scoped is a Wrapper-shaped handler split into two hooks: DoScope (entry
// and exit bracketing a scope) and DoHandle (the actual per-handler work).
// For a chain of Scoped handlers A, B, C the visible order must be
// A.doScope → B.doScope → C.doScope → A.doHandle → B.doHandle → C.doHandle.
// Build produces a single core.Handler that arranges exactly this
// order across a mixed list of Scoped and plain Handlers.
//
// DoScope receives a next func to call to continue the cascade — either
// into the next Scoped handler's DoScope, or, once every scope in the
// group has been entered, into the group's DoHandle cascade. This plays
// the role the source's "nextScope"/"nextHandle" function handles play,
// computed per call instead of cached per-start, since both give the
// same externally observable order and the per-call version needs no
// handler-held state beyond the hooks themselves.
type Scoped struct {
	Lifecycle

	DoScope  func(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request, next func() error) error
	DoHandle func(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error
}

// NewScoped returns a Scoped handler with the given hooks. Either may be nil.
func NewScoped(doScope func(string, *core.BaseRequest, core.ResponseWriter, *core.Request, func() error) error, doHandle func(string, *core.BaseRequest, core.ResponseWriter, *core.Request) error) *Scoped {
	return &Scoped{DoScope: doScope, DoHandle: doHandle}
}

// Handle lets a lone *Scoped satisfy core.Handler outside of a Build'd
// chain: it enters its own scope around its own doHandle, with nothing
// further to cascade into.
func (s *Scoped) Handle(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
	return s.enter(target, base, w, r, s.runDoHandle)
}

func (s *Scoped) runDoHandle(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
	if s.DoHandle == nil {
		return nil
	}
	return s.DoHandle(target, base, w, r)
}

func (s *Scoped) enter(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request, next func(string, *core.BaseRequest, core.ResponseWriter, *core.Request) error) error {
	if s.DoScope == nil {
		return next(target, base, w, r)
	}
	return s.DoScope(target, base, w, r, func() error {
		return next(target, base, w, r)
	})
}

// Destroy marks the handler destroyable; Scoped holds no child reference
// of its own (a Build'd chain's handler list is owned by its caller).
func (s *Scoped) Destroy() error {
	if s.Started() {
		return ErrStarted
	}
	return nil
}

// Build composes handlers into a single core.Handler that realises the
// scoped invocation order. Handlers runs in order; maximal contiguous runs
// of *Scoped handlers form one "scope group" whose members all enter
// DoScope (outermost first) before any of them enters DoHandle (in the
// same order); a non-Scoped handler between groups runs inline via its
// plain Handle, and a further *Scoped handler after a break starts an
// entirely new scope group.
func Build(handlers []core.Handler) core.Handler {
	return &scopedChain{handlers: append([]core.Handler(nil), handlers...)}
}

type scopedChain struct {
	handlers []core.Handler
}

func (c *scopedChain) Handle(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
	return c.runFrom(0, target, base, w, r)
}

// runFrom advances the cascade starting at index i: a plain handler runs
// inline and the cascade continues at i+1; a *Scoped handler opens a new
// scope group spanning the maximal contiguous run of *Scoped handlers
// starting at i.
func (c *scopedChain) runFrom(i int, target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
	if i >= len(c.handlers) {
		return nil
	}

	if _, ok := c.handlers[i].(*Scoped); !ok {
		if err := c.handlers[i].Handle(target, base, w, r); err != nil {
			return err
		}
		return c.runFrom(i+1, target, base, w, r)
	}

	end := i
	for end < len(c.handlers) {
		if _, ok := c.handlers[end].(*Scoped); !ok {
			break
		}
		end++
	}
	return c.enterGroup(i, end, i, target, base, w, r)
}

// enterGroup cascades DoScope across handlers[cur:end]; once cur reaches
// end, every handler in the group has entered its scope, so it starts the
// DoHandle cascade across the same range, then resumes runFrom at end.
func (c *scopedChain) enterGroup(cur, end, start int, target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
	if cur >= end {
		return c.handleGroup(start, end, target, base, w, r)
	}
	sc := c.handlers[cur].(*Scoped)
	if sc.DoScope == nil {
		return c.enterGroup(cur+1, end, start, target, base, w, r)
	}
	return sc.DoScope(target, base, w, r, func() error {
		return c.enterGroup(cur+1, end, start, target, base, w, r)
	})
}

func (c *scopedChain) handleGroup(cur, end int, target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
	if cur >= end {
		return c.runFrom(end, target, base, w, r)
	}
	sc := c.handlers[cur].(*Scoped)
	if sc.DoHandle != nil {
		if err := sc.DoHandle(target, base, w, r); err != nil {
			return err
		}
	}
	return c.handleGroup(cur+1, end, target, base, w, r)
}
