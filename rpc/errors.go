package rpc

import "errors"

// ErrConnClosed is returned by Call and Notify after the connection has
// been closed, and delivered to every request still pending at close time.
var ErrConnClosed = errors.New("rpc: connection closed")
