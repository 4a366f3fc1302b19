/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"testing"
	"time"
)

func TestStateMachineSynchronousCycle(t *testing.T) {
	sm := newStateMachine(nil)

	if err := sm.handling(); err != nil {
		t.Fatalf("handling: %v", err)
	}
	state, async := sm.snapshot()
	if state != StateDispatched || async != AsyncNotAsync {
		t.Fatalf("after handling: got (%s, %s)", state, async)
	}

	state, err := sm.unhandle()
	if err != nil {
		t.Fatalf("unhandle: %v", err)
	}
	if state != StateCompleting {
		t.Fatalf("unhandle: got %s, want COMPLETING", state)
	}

	if err := sm.onComplete(); err != nil {
		t.Fatalf("onComplete: %v", err)
	}
	if err := sm.recycle(); err != nil {
		t.Fatalf("recycle: %v", err)
	}
	state, async = sm.snapshot()
	if state != StateIdle || async != AsyncNotAsync {
		t.Fatalf("after recycle: got (%s, %s)", state, async)
	}
}

func TestStateMachineHandlingRejectedOutsideIdle(t *testing.T) {
	sm := newStateMachine(nil)
	if err := sm.handling(); err != nil {
		t.Fatalf("handling: %v", err)
	}
	if err := sm.handling(); err == nil {
		t.Fatal("expected handling() to reject a second call before recycle")
	}
}

func TestStateMachineAsyncWaitThenExternalDispatch(t *testing.T) {
	sm := newStateMachine(nil)
	if err := sm.handling(); err != nil {
		t.Fatalf("handling: %v", err)
	}
	if err := sm.startAsync(nil); err != nil {
		t.Fatalf("startAsync: %v", err)
	}

	state, err := sm.unhandle()
	if err != nil {
		t.Fatalf("unhandle: %v", err)
	}
	if state != StateAsyncWait {
		t.Fatalf("unhandle with async started: got %s, want ASYNC_WAIT", state)
	}

	woken, err := sm.dispatch()
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !woken {
		t.Fatal("dispatch from ASYNC_WAIT must report woken=true")
	}
	state, async := sm.snapshot()
	if state != StateAsyncWoken || async != AsyncDispatch {
		t.Fatalf("after dispatch: got (%s, %s)", state, async)
	}
}

func TestStateMachineCompleteWakesAsyncWait(t *testing.T) {
	sm := newStateMachine(nil)
	_ = sm.handling()
	_ = sm.startAsync(nil)
	_, _ = sm.unhandle()

	woken, err := sm.complete()
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !woken {
		t.Fatal("complete from ASYNC_WAIT must report woken=true")
	}
	state, async := sm.snapshot()
	if state != StateAsyncWoken || async != AsyncComplete {
		t.Fatalf("after complete: got (%s, %s)", state, async)
	}
}

func TestStateMachineCompleteWithoutAsyncCycleFails(t *testing.T) {
	sm := newStateMachine(nil)
	if _, err := sm.complete(); err == nil {
		t.Fatal("expected complete() to fail with no async cycle in flight")
	}
}

func TestStateMachineOnTimeoutFiresOnlyWhileStarted(t *testing.T) {
	sm := newStateMachine(nil)
	_ = sm.handling()
	_ = sm.startAsync(nil)
	_, _ = sm.unhandle()

	mustDispatch, err := sm.onTimeout()
	if err != nil {
		t.Fatalf("onTimeout: %v", err)
	}
	if !mustDispatch {
		t.Fatal("onTimeout from ASYNC_WAIT/STARTED must report mustDispatch=true")
	}
	state, async := sm.snapshot()
	if state != StateAsyncWoken || async != AsyncExpiring {
		t.Fatalf("after onTimeout: got (%s, %s)", state, async)
	}

	// A second, racing onTimeout call is a lost race, not an error.
	mustDispatch, err = sm.onTimeout()
	if err != nil {
		t.Fatalf("second onTimeout: %v", err)
	}
	if mustDispatch {
		t.Fatal("a second onTimeout call must not re-report mustDispatch")
	}
}

func TestStateMachineUpgradeCancelsArmedTask(t *testing.T) {
	sm := newStateMachine(nil)
	_ = sm.handling()

	task := newTimeoutTask(time.Hour, func() {})
	if err := sm.startAsync(task); err != nil {
		t.Fatalf("startAsync: %v", err)
	}

	sm.upgrade()
	state, _ := sm.snapshot()
	if state != StateUpgraded {
		t.Fatalf("after upgrade: got %s, want UPGRADED", state)
	}
	if sm.asyncTask != nil {
		t.Fatal("upgrade must clear the armed TimeoutTask reference")
	}
	task.mu.Lock()
	cancelled := task.cancelled
	task.mu.Unlock()
	if !cancelled {
		t.Fatal("upgrade must cancel the armed TimeoutTask")
	}
}

func TestStateMachineCompleteAsyncWaitFromWoken(t *testing.T) {
	sm := newStateMachine(nil)
	_ = sm.handling()
	task := newTimeoutTask(time.Hour, func() {})
	_ = sm.startAsync(task)
	_, _ = sm.unhandle()

	if _, err := sm.complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := sm.completeAsyncWait(); err != nil {
		t.Fatalf("completeAsyncWait: %v", err)
	}
	state, _ := sm.snapshot()
	if state != StateCompleting {
		t.Fatalf("completeAsyncWait: got %s, want COMPLETING", state)
	}
	if sm.asyncTask != nil {
		t.Fatal("completeAsyncWait must leave no armed TimeoutTask behind")
	}
}

func TestStateMachineCompleteAsyncWaitFromWaitCancelsTimeout(t *testing.T) {
	sm := newStateMachine(nil)
	_ = sm.handling()
	task := newTimeoutTask(time.Hour, func() {})
	_ = sm.startAsync(task)
	state, _ := sm.unhandle()
	if state != StateAsyncWait {
		t.Fatalf("unhandle: got %s, want ASYNC_WAIT", state)
	}

	if err := sm.completeAsyncWait(); err != nil {
		t.Fatalf("completeAsyncWait: %v", err)
	}
	state, _ = sm.snapshot()
	if state != StateCompleting {
		t.Fatalf("completeAsyncWait: got %s, want COMPLETING", state)
	}
	task.mu.Lock()
	cancelled := task.cancelled
	task.mu.Unlock()
	if !cancelled {
		t.Fatal("completeAsyncWait must cancel a still-armed TimeoutTask")
	}
}

func TestStateMachineCompleteAsyncWaitRejectedOutsideAsync(t *testing.T) {
	sm := newStateMachine(nil)
	if err := sm.completeAsyncWait(); err == nil {
		t.Fatal("expected completeAsyncWait() to reject a call from IDLE")
	}
}

func TestStateMachineRecycleRejectedOutsideCompleted(t *testing.T) {
	sm := newStateMachine(nil)
	if err := sm.recycle(); err == nil {
		t.Fatal("expected recycle() to reject a call from IDLE")
	}
}

func TestStateMachineReadInterestTracking(t *testing.T) {
	sm := newStateMachine(nil)

	if ready := sm.onReadReady(); ready {
		t.Fatal("onReadReady with no prior signal must report false")
	}

	sm.onReadPossible()
	if ready := sm.onReadReady(); !ready {
		t.Fatal("onReadReady must report true after onReadPossible")
	}
	if ready := sm.onReadReady(); ready {
		t.Fatal("onReadPossible's signal must be consumed by the first onReadReady")
	}
}
