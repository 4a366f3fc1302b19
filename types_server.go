/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/badu/httpcore/hdr"
)

const (
	// This should be >= 512 bytes for DetectContentType,
	// but otherwise it's somewhat arbitrary.
	bufferBeforeChunkingSize = 2048

	// DefaultMaxHeaderBytes is the maximum permitted size of the headers
	// in an HTTP request.
	DefaultMaxHeaderBytes = 1 << 20 // 1 MB

	// TimeFormat is the time format to use when generating times in HTTP
	// headers. It is like time.RFC1123 but hard-codes GMT as the time
	// zone.
	TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

	// maxPostHandlerReadBytes is the max number of Request.Body bytes not
	// consumed by a handler that the connection will read from the client
	// in order to keep it alive.
	maxPostHandlerReadBytes = 256 << 10

	// rstAvoidanceDelay is the amount of time we sleep after closing the
	// write side of a TCP connection before closing the entire socket.
	rstAvoidanceDelay = 500 * time.Millisecond

	// DefaultAsyncTimeout is used by Channel.StartAsync when it is given a
	// timeout ≤ 0.
	DefaultAsyncTimeout = 30 * time.Second
)

const (
	// StateNew represents a new connection that is expected to
	// send a request immediately. Connections begin at this
	// state and then transition to either StateActive or
	// StateClosed.
	StateNew ConnState = iota

	// StateActive represents a connection that has read 1 or more
	// bytes of a request and has at least one Channel that is not idle.
	StateActive

	// StateIdle represents a connection that has finished handling
	// all in-flight Channels and is waiting for the next request.
	StateIdle

	// StateHijacked represents a hijacked connection.
	// This is a terminal state.
	StateHijacked

	// StateClosed represents a closed connection.
	// This is a terminal state. Hijacked connections do not
	// transition to StateClosed.
	StateClosed
)

var (
	// ErrBodyNotAllowed is returned by ResponseWriter.Write calls
	// when the HTTP method or response code does not permit a body.
	ErrBodyNotAllowed = errors.New("http: request method or response status code does not allow body")

	// ErrHijacked is returned by ResponseWriter.Write calls when
	// the underlying connection has been hijacked using the
	// Hijacker interface.
	ErrHijacked = errors.New("http: connection has been hijacked")

	// ErrContentLength is returned by ResponseWriter.Write calls
	// when a Handler set a Content-Length response header with a
	// declared size and then attempted to write more bytes than declared.
	ErrContentLength = errors.New("http: wrote more than the declared Content-Length")

	// SrvCtxtKey is a context key used with context.WithValue to access
	// the *Server whose Endpoint started a Channel's handler.
	SrvCtxtKey = &contextKey{"http-server"}

	// LocalAddrContextKey is a context key. It can be used in
	// HTTP handlers with context.WithValue to access the local address
	// the connection arrived on. The associated value is of type net.Addr.
	LocalAddrContextKey = &contextKey{"local-addr"}

	colonSpace = []byte(": ")

	bufioReaderPool   sync.Pool
	bufioWriter2kPool sync.Pool
	bufioWriter4kPool sync.Pool

	copyBufPool = sync.Pool{
		New: func() interface{} {
			b := make([]byte, 32*1024)
			return &b
		},
	}

	errTooLarge = errors.New("http: request too large")

	// Sorted the same as extraHeader.Write's loop.
	extraHeaderKeys = [][]byte{
		[]byte(hdr.ContentType),
		[]byte(hdr.Connection),
		[]byte(hdr.TransferEncoding),
	}

	headerContentLength = []byte("Content-Length: ")
	headerDate          = []byte("Date: ")

	_ closeWriter = (*net.TCPConn)(nil)

	connStateInterface = [...]interface{}{
		StateNew:      StateNew,
		StateActive:   StateActive,
		StateIdle:     StateIdle,
		StateHijacked: StateHijacked,
		StateClosed:   StateClosed,
	}

	// ErrAbortHandler is a sentinel panic value to abort a handler.
	// While any panic from a Handler aborts the response to the client,
	// panicking with ErrAbortHandler also suppresses logging of a stack
	// trace to the error log.
	ErrAbortHandler = errors.New("github.com/badu/httpcore: abort Handler")

	htmlReplacer = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&#34;",
		"'", "&#39;",
	)

	stateName = map[ConnState]string{
		StateNew:      "new",
		StateActive:   "active",
		StateIdle:     "idle",
		StateHijacked: "hijacked",
		StateClosed:   "closed",
	}

	// ErrServerClosed is a sentinel error for a closed Server; no function
	// in this package returns it.
	ErrServerClosed = errors.New("http: Server closed")

	// ErrHandlerTimeout is a sentinel error for a timed-out handler; the
	// response writer's Write does not return it.
	ErrHandlerTimeout = errors.New("http: Handler timeout")
)

type (
	// A ResponseWriter interface is used by a Channel's outermost handler to
	// construct an HTTP response.
	//
	// A ResponseWriter may not be used after the Handler's Handle method
	// has returned.
	ResponseWriter interface {
		// Header returns the header map that will be sent by WriteHeader.
		Header() hdr.Header

		// Write writes the data to the connection as part of an HTTP reply.
		//
		// If WriteHeader has not yet been called, Write calls
		// WriteHeader(http.StatusOK) before writing the data.
		Write([]byte) (int, error)

		// WriteHeader sends an HTTP response header with status code.
		WriteHeader(int)
	}

	// The Flusher interface is implemented by ResponseWriters that allow
	// a handler to flush buffered data to the client.
	Flusher interface {
		Flush()
	}

	// The Hijacker interface is implemented by ResponseWriters that allow
	// a handler to take over the connection.
	Hijacker interface {
		Hijack() (net.Conn, *bufio.ReadWriter, error)
	}

	// The CloseNotifier interface is implemented by ResponseWriters which
	// allow detecting when the underlying connection has gone away.
	CloseNotifier interface {
		CloseNotify() <-chan bool
	}

	// chunkWriter writes to a Channel's connection buffer, and is the writer
	// wrapped by the response's bufWriter buffered writer.
	//
	// chunkWriter also is responsible for finalizing the Header, including
	// conditionally setting the Content-Type and setting a Content-Length
	// in cases where the handler's final output is smaller than the buffer
	// size. It also conditionally adds chunk headers, when in chunking mode.
	chunkWriter struct {
		res *response

		// header is either nil or a deep clone of res.handlerHeader
		// at the time of res.WriteHeader, if res.WriteHeader is
		// called and extra buffering is being done to calculate
		// Content-Type and/or Content-Length.
		header hdr.Header

		wroteHeader bool

		// set by the writeHeader method:
		chunking bool // using chunked transfer encoding for reply body
	}

	// A response is the concrete ResponseWriter for one Channel. It is the
	// Response attribute: it owns the output buffer,
	// implicit Content-Type/Content-Length handling,
	// and the monotonic "committed" flag.
	response struct {
		ch        *Channel
		req       *Request // request for this response
		reqBody   io.ReadCloser
		bufWriter *bufio.Writer // buffers output in chunks to chunkWriter
		chunkWriter chunkWriter

		// handlerHeader is the Header that Handlers get access to,
		// which may be retained and mutated even after WriteHeader.
		handlerHeader hdr.Header

		written       int64 // number of bytes written in body
		contentLength int64 // explicitly-declared Content-Length; or -1
		status        int   // status code passed to WriteHeader
		reason        string

		wroteHeader         bool // reply header has been (logically) written
		wroteContinue       bool // 100 Continue response was written
		wants10KeepAlive    bool // HTTP/1.0 w/ Connection "keep-alive"
		wantsClose          bool // HTTP request has Connection "close"
		calledHeader        bool // handler accessed handlerHeader via Header
		closeAfterReply     bool
		requestBodyLimitHit bool

		closeNotifyCh chan bool
		trailers      []string

		handlerDone atomicBool

		dateBuf   [len(TimeFormat)]byte
		clenBuf   [10]byte
		statusBuf [3]byte

		didCloseNotify int32 // atomic (only 0->1 winner should send)

		// outInterceptors holds output interceptors for this response;
		// nothing in the response path populates or reads it.
		outInterceptors []OutputInterceptor
	}

	atomicBool int32

	// writerOnly hides an io.Writer value's optional ReadFrom method
	// from io.Copy.
	writerOnly struct {
		io.Writer
	}

	// expectContinueReader is a wrapper around io.ReadCloser which, on
	// first read, sends an HTTP/1.1 100 Continue header.
	expectContinueReader struct {
		resp       *response
		readCloser io.ReadCloser
		closed     bool
		sawEOF     bool
	}

	// extraHeader is the set of headers sometimes added by chunkWriter.writeHeader.
	extraHeader struct {
		contentType      string
		connection       string
		transferEncoding string
		date             []byte
		contentLength    []byte
	}

	closeWriter interface {
		CloseWrite() error
	}

	// badRequestError is a literal string used to report why the
	// request-line/headers were rejected as malformed.
	badRequestError string

	// The HandlerFunc type is an adapter to allow the use of ordinary
	// functions as Handlers.
	HandlerFunc func(target string, base *BaseRequest, w ResponseWriter, r *Request) error

	// tcpKeepAliveListener turns on TCP keep-alive, with a fixed 3-minute
	// period, for accepted connections.
	tcpKeepAliveListener struct {
		*net.TCPListener
	}

	// loggingConn is used for debugging.
	loggingConn struct {
		name string
		net.Conn
	}

	// checkConnErrorWriter writes to c.netConIface and records any write errors to c.wErr.
	checkConnErrorWriter struct {
		con *Endpoint
	}

	// A ConnState represents the observable state of a client connection.
	ConnState int
)

// Handle implements Handler for ordinary functions.
func (f HandlerFunc) Handle(target string, base *BaseRequest, w ResponseWriter, r *Request) error {
	return f(target, base, w, r)
}

func (s ConnState) String() string { return stateName[s] }
