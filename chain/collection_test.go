/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package chain

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/badu/httpcore"
)

type errHandler struct {
	err error
	ran *int
}

func (e *errHandler) Handle(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
	*e.ran++
	return e.err
}

func TestCollectionRunsAllChildrenByDefault(t *testing.T) {
	var ran int
	c := NewCollection(&errHandler{ran: &ran}, &errHandler{ran: &ran}, &errHandler{ran: &ran})
	require.NoError(t, c.Handle("/", &core.BaseRequest{}, nil, nil))
	assert.Equal(t, 3, ran)
}

func TestCollectionSingleErrorUnwrapped(t *testing.T) {
	var ran int
	boom := errors.New("boom")
	c := NewCollection(&errHandler{ran: &ran}, &errHandler{err: boom, ran: &ran})

	err := c.Handle("/", &core.BaseRequest{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, boom, err)
	assert.Equal(t, 2, ran)
}

func TestCollectionMultipleErrorsWrapped(t *testing.T) {
	var ran int
	e1 := errors.New("first")
	e2 := errors.New("second")
	c := NewCollection(
		&errHandler{err: e1, ran: &ran},
		&errHandler{err: e2, ran: &ran},
	)

	err := c.Handle("/", &core.BaseRequest{}, nil, nil)
	require.Error(t, err)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	assert.Len(t, merr.Errors, 2)
}

func TestCollectionShortCircuitStopsOnHandled(t *testing.T) {
	var ran int
	claims := core.HandlerFunc(func(target string, b *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
		ran++
		b.SetHandled(true)
		return nil
	})
	c := NewCollection(claims, &errHandler{ran: &ran})
	c.ShortCircuit = true

	require.NoError(t, c.Handle("/", &core.BaseRequest{}, nil, nil))
	assert.Equal(t, 1, ran)
}

func TestCollectionAddChildForbiddenWhileStarted(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Start())
	assert.ErrorIs(t, c.AddChild(&errHandler{ran: new(int)}), ErrStarted)
}
