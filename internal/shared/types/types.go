package types

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var nextConnID atomic.Uint64

// Connection 是一个已 accept 的连接句柄。
// 所有权只转移一次: Acceptor -> 连接队列 -> 取走它的那个 worker。
type Connection struct {
	net.Conn
	ID         uint64
	TraceID    string
	AcceptedAt time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewConnection wraps an accepted socket and assigns it a process-unique id.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		Conn:       conn,
		ID:         nextConnID.Add(1),
		TraceID:    uuid.NewString(),
		AcceptedAt: time.Now(),
	}
}

// Close closes the underlying socket once; later calls return the first result.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}

// ListenerInfo holds the runtime listening info of the acceptor.
type ListenerInfo struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// Stats 是 dispatcher 的运行时计数快照
type Stats struct {
	Workers  int    `json:"workers"`
	Queued   int    `json:"queued"`
	Active   int64  `json:"active"`
	Served   uint64 `json:"served"`
	Failed   uint64 `json:"failed"`
	Rejected uint64 `json:"rejected"`
	BytesIn  uint64 `json:"bytes_in"`
	BytesOut uint64 `json:"bytes_out"`
}

// StatsProvider 由 dispatcher 实现，供监控服务查询。
type StatsProvider interface {
	Stats() Stats
}
