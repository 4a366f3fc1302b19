/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// State is the per-request lifecycle state of a Channel. Every
// transition happens under StateMachine.mu; callers never observe a
// half-applied transition.
type State int

const (
	StateIdle State = iota
	StateDispatched
	StateAsyncWait
	StateAsyncWoken
	StateAsyncIO
	StateCompleting
	StateCompleted
	StateUpgraded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDispatched:
		return "DISPATCHED"
	case StateAsyncWait:
		return "ASYNC_WAIT"
	case StateAsyncWoken:
		return "ASYNC_WOKEN"
	case StateAsyncIO:
		return "ASYNC_IO"
	case StateCompleting:
		return "COMPLETING"
	case StateCompleted:
		return "COMPLETED"
	case StateUpgraded:
		return "UPGRADED"
	default:
		return "UNKNOWN"
	}
}

// AsyncState is the sub-state entered once a Channel's handler calls
// StartAsync.
type AsyncState int

const (
	AsyncNotAsync AsyncState = iota
	AsyncStarted
	AsyncDispatch
	AsyncComplete
	AsyncExpiring
	AsyncExpired
	AsyncErroring
	AsyncErrored
)

func (a AsyncState) String() string {
	switch a {
	case AsyncNotAsync:
		return "NOT_ASYNC"
	case AsyncStarted:
		return "STARTED"
	case AsyncDispatch:
		return "DISPATCH"
	case AsyncComplete:
		return "COMPLETE"
	case AsyncExpiring:
		return "EXPIRING"
	case AsyncExpired:
		return "EXPIRED"
	case AsyncErroring:
		return "ERRORING"
	case AsyncErrored:
		return "ERRORED"
	default:
		return "UNKNOWN"
	}
}

// Interest is the read-interest tri-state tracked alongside writePossible.
type Interest int

const (
	InterestNone Interest = iota
	InterestNeeded
	InterestRegistered
)

func (i Interest) String() string {
	switch i {
	case InterestNeeded:
		return "NEEDED"
	case InterestRegistered:
		return "REGISTERED"
	default:
		return "NONE"
	}
}

// StateMachine is the mutex-guarded transition table: the
// hardest part of the core, and deliberately the one piece of this
// repository with no exported fields — every observation and mutation goes
// through a method that holds mu for the whole critical section.
type StateMachine struct {
	mu sync.Mutex

	state   State
	async   AsyncState
	read    Interest
	onHold  bool // readPossible: a read event arrived while not REGISTERED
	writeOK bool // writePossible

	// asyncTask is the pending TimeoutTask for the current async cycle, if any.
	asyncTask *TimeoutTask

	log *logrus.Entry
}

func newStateMachine(log *logrus.Entry) *StateMachine {
	return &StateMachine{state: StateIdle, async: AsyncNotAsync, log: log}
}

func (sm *StateMachine) snapshot() (State, AsyncState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state, sm.async
}

func (sm *StateMachine) trace(from State, event string) {
	if sm.log == nil {
		return
	}
	sm.log.WithFields(logrus.Fields{
		"from":  from.String(),
		"to":    sm.state.String(),
		"async": sm.async.String(),
		"event": event,
	}).Trace("state transition")
}

// handling moves IDLE -> DISPATCHED: the Channel has a request and is about
// to run the handler chain on the calling goroutine.
func (sm *StateMachine) handling() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state != StateIdle {
		return fmt.Errorf("httpcore: handling() called in state %s", sm.state)
	}
	from := sm.state
	sm.state = StateDispatched
	sm.async = AsyncNotAsync
	sm.trace(from, "handling")
	return nil
}

// unhandle is called when the handler chain returns control to the driving
// loop. It reports whether the request is DISPATCHED->COMPLETING (normal
// finish) or has gone ASYNC_WAIT (the handler called StartAsync and
// returned without completing).
func (sm *StateMachine) unhandle() (State, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	from := sm.state
	switch sm.state {
	case StateDispatched:
		if sm.async == AsyncStarted {
			sm.state = StateAsyncWait
		} else {
			sm.state = StateCompleting
		}
	case StateAsyncIO:
		if sm.async == AsyncComplete {
			sm.state = StateCompleting
		} else {
			sm.state = StateAsyncWait
		}
	default:
		return sm.state, fmt.Errorf("httpcore: unhandle() called in state %s", sm.state)
	}
	sm.trace(from, "unhandle")
	return sm.state, nil
}

// startAsync moves the async sub-state to STARTED and arms task as the
// timeout for this cycle. Must be called from DISPATCHED or ASYNC_IO.
func (sm *StateMachine) startAsync(task *TimeoutTask) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state != StateDispatched && sm.state != StateAsyncIO {
		return fmt.Errorf("httpcore: startAsync() called in state %s", sm.state)
	}
	if sm.async != AsyncNotAsync && sm.async != AsyncDispatch {
		return fmt.Errorf("httpcore: startAsync() called in async state %s", sm.async)
	}
	from := sm.state
	sm.async = AsyncStarted
	sm.asyncTask = task
	sm.trace(from, "startAsync")
	return nil
}

// dispatch moves STARTED/EXPIRING -> DISPATCH: something (a completed I/O,
// an application thread) has woken the async cycle and it will be
// re-entered on a driving goroutine.
func (sm *StateMachine) dispatch() (woken bool, err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.async != AsyncStarted && sm.async != AsyncExpiring {
		return false, fmt.Errorf("httpcore: dispatch() called in async state %s", sm.async)
	}
	from := sm.state
	sm.async = AsyncDispatch
	woken = sm.state == StateAsyncWait
	if woken {
		sm.state = StateAsyncWoken
	}
	sm.cancelTaskLocked()
	sm.trace(from, "dispatch")
	return woken, nil
}

// complete marks the async cycle COMPLETE; if the Channel is currently
// suspended in ASYNC_WAIT this also wakes it so the driving loop can finish
// the response, mirroring dispatch's wake semantics.
func (sm *StateMachine) complete() (woken bool, err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.async == AsyncNotAsync {
		return false, fmt.Errorf("httpcore: complete() called with no async cycle in flight")
	}
	from := sm.state
	sm.async = AsyncComplete
	woken = sm.state == StateAsyncWait
	if woken {
		sm.state = StateAsyncWoken
	}
	sm.cancelTaskLocked()
	sm.trace(from, "complete")
	return woken, nil
}

// onTimeout is invoked by the timeout scheduler when a TimeoutTask
// fires. It reports whether the Channel must be woken by the caller (i.e.
// the scheduler goroutine itself must drive the error dispatch) because the
// Channel was idly waiting and nothing else will wake it.
func (sm *StateMachine) onTimeout() (mustDispatch bool, err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.async != AsyncStarted {
		// Already dispatched/completed by the application; the race was
		// lost by the timer, which is fine — at-most-once is only about
		// the *error* being delivered once, not about suppressing the fire.
		return false, nil
	}
	from := sm.state
	sm.async = AsyncExpiring
	mustDispatch = sm.state == StateAsyncWait
	if mustDispatch {
		sm.state = StateAsyncWoken
	}
	sm.trace(from, "onTimeout")
	return mustDispatch, nil
}

// asyncError moves EXPIRING -> ERRORING, recording that the timeout (or an
// explicit AsyncListener.OnError) is about to run the error-dispatch path.
func (sm *StateMachine) asyncError() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.async != AsyncExpiring && sm.async != AsyncStarted {
		return fmt.Errorf("httpcore: asyncError() called in async state %s", sm.async)
	}
	from := sm.state
	sm.async = AsyncErroring
	sm.trace(from, "asyncError")
	return nil
}

func (sm *StateMachine) onReadUnready() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	from := sm.state
	if sm.read == InterestRegistered {
		sm.read = InterestNeeded
	}
	sm.trace(from, "onReadUnready")
}

// onReadPossible records that data is available before any handler asked
// for it; onReadReady later consumes the flag.
func (sm *StateMachine) onReadPossible() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	from := sm.state
	sm.onHold = true
	sm.trace(from, "onReadPossible")
}

// onReadReady reports whether a read-interested caller may proceed; it
// clears both the NEEDED interest and the held readPossible flag.
func (sm *StateMachine) onReadReady() (ready bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	ready = sm.onHold || sm.read == InterestNeeded
	sm.onHold = false
	if sm.read == InterestNeeded {
		sm.read = InterestRegistered
	}
	return ready
}

func (sm *StateMachine) onWritePossible() (woken bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.writeOK = true
	from := sm.state
	woken = sm.state == StateAsyncWait && sm.async == AsyncStarted
	if woken {
		sm.async = AsyncDispatch
		sm.state = StateAsyncWoken
	}
	sm.trace(from, "onWritePossible")
	return woken
}

// onComplete moves COMPLETING -> COMPLETED, the terminal state for one
// request/response cycle.
func (sm *StateMachine) onComplete() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state != StateCompleting {
		return fmt.Errorf("httpcore: onComplete() called in state %s", sm.state)
	}
	from := sm.state
	sm.state = StateCompleted
	sm.trace(from, "onComplete")
	return nil
}

// recycle resets the machine to IDLE. It must only be called from
// COMPLETED.
func (sm *StateMachine) recycle() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state != StateCompleted {
		return fmt.Errorf("httpcore: recycle() called in state %s", sm.state)
	}
	from := sm.state
	sm.state = StateIdle
	sm.async = AsyncNotAsync
	sm.read = InterestNone
	sm.onHold = false
	sm.writeOK = false
	sm.asyncTask = nil
	sm.trace(from, "recycle")
	return nil
}

// upgrade moves any non-terminal state directly to UPGRADED: the connection
// has been handed to a different protocol and the state machine no longer
// drives it.
func (sm *StateMachine) upgrade() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	from := sm.state
	sm.state = StateUpgraded
	sm.cancelTaskLocked()
	sm.trace(from, "upgrade")
}

// completeAsyncWait forces an ASYNC_WAIT/ASYNC_WOKEN channel straight to
// COMPLETING without re-entering the handler chain: the terminal path for
// a wake that finishes the request outright — Complete(), a timed-out or
// erroring async cycle, or the Channel's context being cancelled — rather
// than dispatching back into the handler. Any still-armed TimeoutTask is
// cancelled.
func (sm *StateMachine) completeAsyncWait() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state != StateAsyncWait && sm.state != StateAsyncWoken {
		return fmt.Errorf("httpcore: completeAsyncWait() called in state %s", sm.state)
	}
	from := sm.state
	sm.state = StateCompleting
	sm.cancelTaskLocked()
	sm.trace(from, "completeAsyncWait")
	return nil
}

// cancelTaskLocked cancels the armed TimeoutTask, if any. Caller holds mu.
func (sm *StateMachine) cancelTaskLocked() {
	if sm.asyncTask != nil {
		sm.asyncTask.cancel()
		sm.asyncTask = nil
	}
}
