/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/badu/httpcore/hdr"
)

// ErrorHandler is the error interception point: the single place a Channel's
// driving loop funnels a non-nil Handler/timeout/bad-message error so it
// becomes an HTTP response, with content negotiated among text/html,
// application/json and text/plain rather than a single fixed error body.
type ErrorHandler struct {
	// ShowStacks controls whether a CoreError's captured pkg/errors stack
	// trace is rendered in the body; it must default off in production.
	ShowStacks bool
}

// NewErrorHandler returns an ErrorHandler with stacks disabled, the
// conservative default of never leaking internals to a client.
func NewErrorHandler() *ErrorHandler {
	return &ErrorHandler{ShowStacks: false}
}

// Handle writes status/reason/body for err onto ch's ResponseWriter. It is
// idempotent with an already-committed response: if headers were already
// sent, Handle only logs, since rewriting a status line that already went
// out on the wire is impossible.
func (h *ErrorHandler) Handle(ch *Channel, err error) {
	status, reason := h.classify(err)

	w := ch.resp
	log := ch.log.WithFields(map[string]interface{}{"status": status, "kind": reason})
	if w.wroteHeader {
		log.Warnf("error after headers committed: %v", err)
		return
	}

	accept := ch.req.Header.Get(hdr.Accept)
	w.Header().Set(hdr.ContentType, h.negotiate(accept))
	w.WriteHeader(status)

	body := h.render(accept, status, reason, err)
	io.WriteString(w, body)
	log.Info("handled error")
}

// classify maps err to a status code and short reason, unwrapping a
// *CoreError when present and otherwise defaulting to 500.
func (h *ErrorHandler) classify(err error) (status int, reason string) {
	var ce *CoreError
	if errors.As(err, &ce) {
		status = ce.Status
		reason = ce.Reason
		if reason == "" {
			reason = ce.Kind.String()
		}
		if status == 0 {
			status = StatusInternalServerError
		}
		return status, reason
	}
	return StatusInternalServerError, err.Error()
}

// negotiate picks a response Content-Type from the client's Accept header;
// JSON and plain text are offered alongside an HTML error page,
// defaulting to HTML when nothing more specific is requested.
func (h *ErrorHandler) negotiate(accept string) string {
	switch {
	case hasToken(accept, "application/json"):
		return "application/json; charset=utf-8"
	case hasToken(accept, "text/plain"):
		return "text/plain; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}

func (h *ErrorHandler) render(accept string, status int, reason string, err error) string {
	switch {
	case hasToken(accept, "application/json"):
		return fmt.Sprintf(`{"status":%d,"error":%q}`, status, reason)
	case hasToken(accept, "text/plain"):
		return fmt.Sprintf("%d %s\n%s\n", status, StatusText(status), reason)
	default:
		escaped := htmlReplacer.Replace(reason)
		body := fmt.Sprintf("<html><head><title>%d %s</title></head><body><h1>%d %s</h1><p>%s</p>",
			status, StatusText(status), status, StatusText(status), escaped)
		if h.ShowStacks {
			if st, ok := err.(interface{ StackTrace() errors.StackTrace }); ok {
				body += fmt.Sprintf("<pre>%+v</pre>", st.StackTrace())
			}
		}
		return body + "</body></html>"
	}
}
