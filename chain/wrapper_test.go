/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package chain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/badu/httpcore"
)

func TestWrapperRunsBeforeChildAfterInOrder(t *testing.T) {
	var trace []string
	w := NewWrapper(core.HandlerFunc(func(target string, base *core.BaseRequest, rw core.ResponseWriter, r *core.Request) error {
		trace = append(trace, "child")
		return nil
	}))
	w.Before = func(target string, base *core.BaseRequest, rw core.ResponseWriter, r *core.Request) error {
		trace = append(trace, "before")
		return nil
	}
	w.After = func(target string, base *core.BaseRequest, rw core.ResponseWriter, r *core.Request) error {
		trace = append(trace, "after")
		return nil
	}

	require.NoError(t, w.Handle("/", &core.BaseRequest{}, nil, nil))
	assert.Equal(t, []string{"before", "child", "after"}, trace)
}

func TestWrapperBeforeErrorAbortsChild(t *testing.T) {
	childRan := false
	w := NewWrapper(core.HandlerFunc(func(target string, base *core.BaseRequest, rw core.ResponseWriter, r *core.Request) error {
		childRan = true
		return nil
	}))
	boom := errors.New("boom")
	w.Before = func(target string, base *core.BaseRequest, rw core.ResponseWriter, r *core.Request) error {
		return boom
	}

	err := w.Handle("/", &core.BaseRequest{}, nil, nil)
	assert.Equal(t, boom, err)
	assert.False(t, childRan)
}

func TestWrapperSetChildForbiddenWhileStarted(t *testing.T) {
	w := NewWrapper(nil)
	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.SetChild(nil), ErrStarted)
}

func TestWrapperDestroyDestroysChildThenClears(t *testing.T) {
	inner := NewWrapper(nil)
	outer := NewWrapper(inner)

	require.NoError(t, outer.Destroy())
	assert.Nil(t, outer.Child())
}

func TestWrapperDestroyForbiddenWhileStarted(t *testing.T) {
	w := NewWrapper(nil)
	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Destroy(), ErrStarted)
}
