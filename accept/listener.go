/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package accept

import (
	"net"
	"time"
)

// keepAliveListener wraps a *net.TCPListener to enable TCP keep-alives on
// every accepted connection, the way the core's own tcpKeepAliveListener
// does for net/http-style synchronous serving.
type keepAliveListener struct {
	*net.TCPListener
	period time.Duration
}

func (l keepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(l.period)
	return conn, nil
}
