/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the error taxonomy: the closed set of failure categories a
// Channel, Connection or Acceptor can surface. Kind deliberately carries no
// payload of its own; the payload (status, reason, cause) travels on
// *CoreError.
type Kind int

const (
	// KindTransportClosed : the remote peer went away. Logged and continued
	// at the acceptor; terminal for a single Connection.
	KindTransportClosed Kind = iota
	// KindBadMessage : framing/parsing rejected the request (status+reason).
	KindBadMessage
	// KindTimeout : an async cycle's TimeoutTask fired.
	KindTimeout
	// KindHandlerRuntime : a Handler panicked or returned a non-nil error.
	KindHandlerRuntime
	// KindConfigurationInvalid : Start() was called with an invalid Config; never recovered at runtime.
	KindConfigurationInvalid
	// KindDetectionFailed : no Detecting factory recognised the connection.
	KindDetectionFailed
	// KindUpgradeUnsupported : a protocol upgrade was requested that no
	// factory can service; treated as KindDetectionFailed.
	KindUpgradeUnsupported
	// KindSizeLimitExceeded : a request or response body exceeded its configured limit.
	KindSizeLimitExceeded
)

func (k Kind) String() string {
	switch k {
	case KindTransportClosed:
		return "TransportClosed"
	case KindBadMessage:
		return "BadMessage"
	case KindTimeout:
		return "Timeout"
	case KindHandlerRuntime:
		return "HandlerRuntime"
	case KindConfigurationInvalid:
		return "ConfigurationInvalid"
	case KindDetectionFailed:
		return "DetectionFailed"
	case KindUpgradeUnsupported:
		return "UpgradeUnsupported"
	case KindSizeLimitExceeded:
		return "SizeLimitExceeded"
	default:
		return "Unknown"
	}
}

// CoreError is the single error type raised across the core. Status and
// Reason are meaningful for KindBadMessage and KindSizeLimitExceeded; Cause
// holds the underlying error (wrapped with a stack via github.com/pkg/errors
// so the error handler's showStacks rendering has something to show).
type CoreError struct {
	Kind   Kind
	Status int
	Reason string
	Cause  error
}

func (e *CoreError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *CoreError) Unwrap() error { return e.Cause }

// StackTrace exposes the github.com/pkg/errors stack of the wrapped cause,
// when present, for the error handler's showStacks rendering.
func (e *CoreError) StackTrace() errors.StackTrace {
	type stackTracer interface{ StackTrace() errors.StackTrace }
	if st, ok := e.Cause.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

// NewBadMessage builds a KindBadMessage CoreError carrying a status and reason.
func NewBadMessage(status int, reason string) *CoreError {
	return &CoreError{Kind: KindBadMessage, Status: status, Reason: reason, Cause: errors.New(reason)}
}

// NewSizeLimitExceeded builds a KindSizeLimitExceeded CoreError carrying a status.
func NewSizeLimitExceeded(status int, reason string) *CoreError {
	return &CoreError{Kind: KindSizeLimitExceeded, Status: status, Reason: reason, Cause: errors.New(reason)}
}

// NewTimeout builds a KindTimeout CoreError for an expired async cycle.
func NewTimeout(reason string) *CoreError {
	return &CoreError{Kind: KindTimeout, Status: StatusInternalServerError, Reason: reason, Cause: errors.New(reason)}
}

// NewHandlerRuntime wraps a panic value or handler error with a stack trace
// captured at the point of recovery.
func NewHandlerRuntime(cause error) *CoreError {
	return &CoreError{Kind: KindHandlerRuntime, Status: StatusInternalServerError, Cause: errors.WithStack(cause)}
}

// NewConfigurationInvalid wraps a validation failure; Start() must fail fast on this.
func NewConfigurationInvalid(cause error) *CoreError {
	return &CoreError{Kind: KindConfigurationInvalid, Cause: errors.WithStack(cause)}
}

// NewDetectionFailed reports that no Detecting factory recognised the connection.
func NewDetectionFailed(reason string) *CoreError {
	return &CoreError{Kind: KindDetectionFailed, Reason: reason, Cause: errors.New(reason)}
}

// NewUpgradeUnsupported is treated as KindDetectionFailed ("UpgradeUnsupported
// → treated as DetectionFailed"), but keeps its own Kind for logging/metrics.
func NewUpgradeUnsupported(reason string) *CoreError {
	return &CoreError{Kind: KindUpgradeUnsupported, Reason: reason, Cause: errors.New(reason)}
}

// IsTransportClosed reports whether err represents a closed/reset peer connection —
// the "transient I/O (log, continue)" class of accept-error, the kind
// that gets logged and the accept loop continues rather than aborting.
func IsTransportClosed(err error) bool {
	ce, ok := err.(*CoreError)
	return ok && ce.Kind == KindTransportClosed
}
