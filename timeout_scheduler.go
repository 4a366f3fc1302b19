/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"sync"
	"time"
)

// TimeoutTask is a single armed timeout: a cancellable, at-most-once
// callback racing against the StateMachine's own locking. It races a
// goroutine against a time.Timer; TimeoutTask generalizes that into a
// reusable primitive the Channel arms once per async cycle instead of
// once per request.
type TimeoutTask struct {
	mu     sync.Mutex
	timer  *time.Timer
	fired  bool
	cancelled bool
	fn     func()
}

// newTimeoutTask arms fn to run after d, unless cancelled first. fn runs on
// the time.AfterFunc goroutine, never on the caller's.
func newTimeoutTask(d time.Duration, fn func()) *TimeoutTask {
	t := &TimeoutTask{fn: fn}
	t.timer = time.AfterFunc(d, t.run)
	return t
}

func (t *TimeoutTask) run() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.fired = true
	fn := t.fn
	t.mu.Unlock()
	fn()
}

// cancel reports whether it won the race against run: true if the timer had
// not already fired. At-most-once delivery relies on exactly one of
// cancel/run ever observing a false/true "first" result.
func (t *TimeoutTask) cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer.Stop()
	if t.fired {
		return false
	}
	t.cancelled = true
	LifecycleEvents.Dispatch(EventTimeoutCancelled)
	return true
}

// reset re-arms the task for another d, used when a handler extends its own
// async timeout mid-cycle.
func (t *TimeoutTask) reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fired = false
	t.cancelled = false
	t.timer.Reset(d)
}

// timeoutScheduler owns every TimeoutTask created for one Server, purely so
// Close can cancel outstanding timers instead of leaking goroutines.
type timeoutScheduler struct {
	mu    sync.Mutex
	tasks map[*TimeoutTask]struct{}
}

func newTimeoutScheduler() *timeoutScheduler {
	return &timeoutScheduler{tasks: make(map[*TimeoutTask]struct{})}
}

func (s *timeoutScheduler) arm(d time.Duration, fn func()) *TimeoutTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	var task *TimeoutTask
	task = newTimeoutTask(d, func() {
		s.forget(task)
		LifecycleEvents.Dispatch(EventTimeoutFired)
		fn()
	})
	s.tasks[task] = struct{}{}
	LifecycleEvents.Dispatch(EventTimeoutArmed)
	return task
}

func (s *timeoutScheduler) forget(task *TimeoutTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, task)
}

// cancelAll cancels every outstanding task; used by Server.Close.
func (s *timeoutScheduler) cancelAll() {
	s.mu.Lock()
	tasks := make([]*TimeoutTask, 0, len(s.tasks))
	for t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()
	for _, t := range tasks {
		t.cancel()
	}
}
