/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package http

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

func (c *connReader) lock() {
	c.mu.Lock()
	if c.cond == nil {
		c.cond = sync.NewCond(&c.mu)
	}
}

func (c *connReader) unlock() { c.mu.Unlock() }

// startBackgroundRead kicks off a single-byte Read on the Endpoint's
// net.Conn so a Body.Read can learn "client hung up" or "next request's
// first byte is already here" without blocking a handler goroutine.
func (c *connReader) startBackgroundRead() {
	c.lock()
	defer c.unlock()
	if c.inRead {
		panic("httpcore: invalid concurrent Body.Read call")
	}
	if c.hasByte {
		return
	}
	c.inRead = true
	c.conn.netConIface.SetReadDeadline(time.Time{})
	go c.backgroundRead()
}

func (c *connReader) backgroundRead() {
	n, err := c.conn.netConIface.Read(c.byteBuf[:])
	c.lock()
	if n == 1 {
		c.hasByte = true
		// Already at EOF (or we wouldn't be in a background read), so
		// this byte belongs to a pipelined next request.
		c.closeNotifyFromPipelinedRequest()
	}
	if ne, ok := err.(net.Error); ok && c.aborted && ne.Timeout() {
		// Expected: another goroutine called abortPendingRead.
	} else if err != nil {
		c.handleReadError(err)
	}
	c.aborted = false
	c.inRead = false
	c.unlock()
	c.cond.Broadcast()
}

func (c *connReader) abortPendingRead() {
	c.lock()
	defer c.unlock()
	if !c.inRead {
		return
	}
	c.aborted = true
	c.conn.netConIface.SetReadDeadline(aLongTimeAgo)
	for c.inRead {
		c.cond.Wait()
	}
	c.conn.netConIface.SetReadDeadline(time.Time{})
}

func (c *connReader) setReadLimit(remain int64) { c.remain = remain }

func (c *connReader) setInfiniteReadLimit() { c.remain = MaxInt64 }

func (c *connReader) hitReadLimit() bool { return c.remain <= 0 }

// handleReadError cancels the Endpoint's Channel context and notifies any
// in-flight response's CloseNotify channel. May be called from either the
// background-read goroutine or a handler goroutine's own Read.
func (c *connReader) handleReadError(err error) {
	c.conn.cancelCtx()
	if c.conn.server != nil {
		c.conn.server.logger().WithFields(logrus.Fields{
			"remote_addr": c.conn.netConIface.RemoteAddr().String(),
			"error":       err,
		}).Debug("connection read error")
	}
	c.closeNotify()
}

// closeNotifyFromPipelinedRequest exists only to name the call site: the
// client sent its next request's first byte before this one finished, per
// the same "MAY pipeline" allowance HTTP/1.1 keep-alive always had.
func (c *connReader) closeNotifyFromPipelinedRequest() {
	c.closeNotify()
}

// closeNotify may be called from multiple goroutines (the background
// reader and a handler calling CloseNotify); the CAS makes the send
// happen at most once per in-flight response.
func (c *connReader) closeNotify() {
	res, _ := c.conn.curReq.Load().(*response)
	if res != nil {
		if atomic.CompareAndSwapInt32(&res.didCloseNotify, 0, 1) {
			res.closeNotifyCh <- true
		}
	}
}

func (c *connReader) Read(p []byte) (int, error) {
	c.lock()
	if c.inRead {
		c.unlock()
		panic("httpcore: invalid concurrent Body.Read call")
	}
	if c.hitReadLimit() {
		c.unlock()
		return 0, io.EOF
	}
	if len(p) == 0 {
		c.unlock()
		return 0, nil
	}
	if int64(len(p)) > c.remain {
		p = p[:c.remain]
	}
	if c.hasByte {
		p[0] = c.byteBuf[0]
		c.hasByte = false
		c.unlock()
		return 1, nil
	}
	c.inRead = true
	c.unlock()
	n, err := c.conn.netConIface.Read(p)

	c.lock()
	c.inRead = false
	if err != nil {
		c.handleReadError(err)
	}
	c.remain -= int64(n)
	c.unlock()
	c.cond.Broadcast()
	return n, err
}
