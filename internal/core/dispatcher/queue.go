package dispatcher

import (
	"errors"
	"sync"

	"statusd/internal/shared/types"
)

var (
	ErrQueueClosed = errors.New("connection queue is closed")
	ErrQueueFull   = errors.New("connection queue is full")
)

// ConnQueue 是 Acceptor 与 worker 之间共享的 FIFO 连接队列。
// 它是一个 monitor: 一把互斥锁加两个条件变量。锁只在入队/出队时持有，
// 等待时由 Cond.Wait 释放，永远不会跨越连接上的 I/O。
type ConnQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []*types.Connection
	capacity int // 0 表示不限长度
	closed   bool
}

// NewConnQueue creates a queue holding at most capacity connections.
func NewConnQueue(capacity int) *ConnQueue {
	q := &ConnQueue{
		capacity: capacity,
		items:    make([]*types.Connection, 0, initialCap(capacity)),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

func initialCap(capacity int) int {
	if capacity > 0 && capacity < 1024 {
		return capacity
	}
	return 16
}

func (q *ConnQueue) full() bool {
	return q.capacity > 0 && len(q.items) >= q.capacity
}

// Push appends c, waiting while the queue is full, and wakes one waiting worker.
func (q *ConnQueue) Push(c *types.Connection) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.full() && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, c)
	q.notEmpty.Signal()
	return nil
}

// TryPush is Push without waiting: a full queue yields ErrQueueFull.
func (q *ConnQueue) TryPush(c *types.Connection) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.full() {
		return ErrQueueFull
	}
	q.items = append(q.items, c)
	q.notEmpty.Signal()
	return nil
}

// Pop blocks until a connection is available and removes the head.
// It returns false once the queue is closed and empty.
func (q *ConnQueue) Pop() (*types.Connection, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	c := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.notFull.Signal()
	return c, true
}

// Close stops accepting new connections and wakes every waiter.
// Connections already queued can still be popped.
func (q *ConnQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Drain removes and returns everything still queued.
func (q *ConnQueue) Drain() []*types.Connection {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	q.notFull.Broadcast()
	return items
}

// Len returns the number of queued connections.
func (q *ConnQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *ConnQueue) Cap() int {
	return q.capacity
}
