/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/badu/httpcore"
)

func recordingScope(name string, trace *[]string) *Scoped {
	return NewScoped(
		func(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request, next func() error) error {
			*trace = append(*trace, name+".doScope")
			return next()
		},
		func(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
			*trace = append(*trace, name+".doHandle")
			return nil
		},
	)
}

type plainHandler struct {
	name  string
	trace *[]string
}

func (p *plainHandler) Handle(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request) error {
	*p.trace = append(*p.trace, p.name+".handle")
	return nil
}

func TestBuildAllScopedOrdering(t *testing.T) {
	var trace []string
	a := recordingScope("A", &trace)
	b := recordingScope("B", &trace)
	c := recordingScope("C", &trace)

	h := Build([]core.Handler{a, b, c})
	require.NoError(t, h.Handle("/", nil, nil, nil))

	assert.Equal(t, []string{
		"A.doScope", "B.doScope", "C.doScope",
		"A.doHandle", "B.doHandle", "C.doHandle",
	}, trace)
}

func TestBuildMixedScopedAndPlainOrdering(t *testing.T) {
	var trace []string
	a := recordingScope("A", &trace)
	b := recordingScope("B", &trace)
	x := &plainHandler{name: "X", trace: &trace}
	c := recordingScope("C", &trace)

	h := Build([]core.Handler{a, b, x, c})
	require.NoError(t, h.Handle("/", nil, nil, nil))

	assert.Equal(t, []string{
		"A.doScope", "B.doScope",
		"A.doHandle", "B.doHandle",
		"X.handle",
		"C.doScope", "C.doHandle",
	}, trace)
}

func TestScopedHandleStandalone(t *testing.T) {
	var trace []string
	a := recordingScope("A", &trace)

	require.NoError(t, a.Handle("/", nil, nil, nil))
	assert.Equal(t, []string{"A.doScope", "A.doHandle"}, trace)
}

func TestScopedDestroyForbiddenWhileStarted(t *testing.T) {
	a := NewScoped(nil, nil)
	require.NoError(t, a.Start())
	assert.ErrorIs(t, a.Destroy(), ErrStarted)
}
