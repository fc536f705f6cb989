// FILE: internal/shared/counted_conn.go
package shared

import (
	"net"
	"sync/atomic"
)

// TrafficCounter 累计所有客户端连接的收发字节数，可在多个连接间共享。
type TrafficCounter struct {
	received atomic.Uint64
	sent     atomic.Uint64
}

// Received returns the total bytes read from clients.
func (t *TrafficCounter) Received() uint64 { return t.received.Load() }

// Sent returns the total bytes written to clients.
func (t *TrafficCounter) Sent() uint64 { return t.sent.Load() }

// CountedConn 是一个 net.Conn 的包装器，把读写字节数累加到 TrafficCounter。
type CountedConn struct {
	net.Conn
	counter *TrafficCounter
}

// NewCountedConn wraps conn; a nil counter returns conn unchanged.
func NewCountedConn(conn net.Conn, counter *TrafficCounter) net.Conn {
	if counter == nil {
		return conn
	}
	return &CountedConn{
		Conn:    conn,
		counter: counter,
	}
}

func (c *CountedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.counter.received.Add(uint64(n))
	}
	return n, err
}

func (c *CountedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.counter.sent.Add(uint64(n))
	}
	return n, err
}
