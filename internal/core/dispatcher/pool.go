package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"statusd/internal/shared/logger"
	"statusd/internal/shared/types"
)

// ErrHandlerPanic wraps a panic recovered while serving one connection.
var ErrHandlerPanic = errors.New("connection handler panicked")

// ConnectionHandler 处理单个连接上的协议。连接的关闭由 worker 负责。
type ConnectionHandler interface {
	Handle(ctx context.Context, workerID int, conn *types.Connection) error
}

// HandlerFunc adapts a function to ConnectionHandler.
type HandlerFunc func(ctx context.Context, workerID int, conn *types.Connection) error

func (f HandlerFunc) Handle(ctx context.Context, workerID int, conn *types.Connection) error {
	return f(ctx, workerID, conn)
}

// Pool 是固定大小的 worker 集合，从 ConnQueue 中消费连接。
// 单个连接的失败 (错误或 panic) 只影响该连接，worker 数量在整个生命周期内不变。
type Pool struct {
	size    int
	queue   *ConnQueue
	handler ConnectionHandler
	log     zerolog.Logger

	waitGroup sync.WaitGroup
	startOnce sync.Once

	active atomic.Int64
	served atomic.Uint64
	failed atomic.Uint64

	inflightMu sync.Mutex
	inflight   map[uint64]*types.Connection
}

// NewPool creates a pool of size workers reading from queue.
func NewPool(size int, queue *ConnQueue, handler ConnectionHandler) *Pool {
	return &Pool{
		size:     size,
		queue:    queue,
		handler:  handler,
		log:      logger.WithComponent("worker-pool"),
		inflight: make(map[uint64]*types.Connection),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			p.waitGroup.Add(1)
			go p.worker(ctx, i)
		}
		p.log.Info().Int("workers", p.size).Msg("Worker pool started")
	})
}

// Wait blocks until every worker has exited, which only happens after the
// queue is closed and drained.
func (p *Pool) Wait() {
	p.waitGroup.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.waitGroup.Done()
	for {
		conn, ok := p.queue.Pop()
		if !ok {
			p.log.Debug().Int("worker", id).Msg("Queue closed, worker exiting")
			return
		}
		p.serve(ctx, id, conn)
	}
}

func (p *Pool) serve(ctx context.Context, id int, conn *types.Connection) {
	p.active.Add(1)
	p.track(conn)
	start := time.Now()

	p.log.Debug().
		Int("worker", id).
		Uint64("conn_id", conn.ID).
		Str("trace_id", conn.TraceID).
		Dur("queued_for", start.Sub(conn.AcceptedAt)).
		Msg("New connection")

	err := p.handle(ctx, id, conn)

	p.untrack(conn)
	conn.Close()
	p.active.Add(-1)

	if err != nil {
		p.failed.Add(1)
		p.log.Warn().
			Err(err).
			Int("worker", id).
			Uint64("conn_id", conn.ID).
			Str("trace_id", conn.TraceID).
			Msg("Connection handling failed")
		return
	}
	p.served.Add(1)
	p.log.Debug().
		Int("worker", id).
		Uint64("conn_id", conn.ID).
		Dur("elapsed", time.Since(start)).
		Msg("Connection served")
}

// handle runs the handler behind a recover so a panic stays scoped to conn.
func (p *Pool) handle(ctx context.Context, id int, conn *types.Connection) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return p.handler.Handle(ctx, id, conn)
}

func (p *Pool) track(conn *types.Connection) {
	p.inflightMu.Lock()
	p.inflight[conn.ID] = conn
	p.inflightMu.Unlock()
}

func (p *Pool) untrack(conn *types.Connection) {
	p.inflightMu.Lock()
	delete(p.inflight, conn.ID)
	p.inflightMu.Unlock()
}

// abortInflight closes every connection currently being served so that
// blocked reads and writes return.
func (p *Pool) abortInflight() int {
	p.inflightMu.Lock()
	defer p.inflightMu.Unlock()
	for _, conn := range p.inflight {
		conn.Close()
	}
	return len(p.inflight)
}

func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) Active() int64 {
	return p.active.Load()
}
