package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"statusd/internal/shared/logger"
	"statusd/internal/shared/protocol"
	"statusd/internal/shared/types"
)

// Dispatcher 持有连接队列和 worker pool，是 Acceptor 与 worker 之间唯一的共享对象。
// 它不依赖任何包级全局状态，因此同一进程中可以运行多个互不干扰的实例。
type Dispatcher struct {
	cfg   types.DispatchConf
	queue *ConnQueue
	pool  *Pool
	log   zerolog.Logger

	rejected atomic.Uint64

	cancel   context.CancelFunc
	stopOnce sync.Once
	stopErr  error
}

// New creates a Dispatcher. Workers are not running until Start.
func New(cfg types.DispatchConf, handler ConnectionHandler) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.FullQueuePolicy == "" {
		cfg.FullQueuePolicy = types.PolicyBlock
	}
	queue := NewConnQueue(cfg.QueueSize)
	return &Dispatcher{
		cfg:   cfg,
		queue: queue,
		pool:  NewPool(cfg.Workers, queue, handler),
		log:   logger.WithComponent("dispatcher"),
	}
}

// Start launches the worker pool. ctx is handed to every Handle call.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.pool.Start(ctx)
}

// Submit publishes an accepted connection to the queue according to the
// full-queue policy. On error the connection has already been closed.
func (d *Dispatcher) Submit(conn *types.Connection) error {
	var err error
	switch d.cfg.FullQueuePolicy {
	case types.PolicyReject:
		err = d.queue.TryPush(conn)
	default:
		err = d.queue.Push(conn)
	}
	if err == nil {
		return nil
	}

	d.rejected.Add(1)
	if errors.Is(err, ErrQueueFull) {
		d.replyBusy(conn)
	}
	conn.Close()
	d.log.Warn().
		Err(err).
		Uint64("conn_id", conn.ID).
		Str("trace_id", conn.TraceID).
		Msg("Connection rejected")
	return err
}

func (d *Dispatcher) replyBusy(conn *types.Connection) {
	if timeout := d.cfg.IOTimeoutDuration(); timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	if err := protocol.WriteResponse(conn, protocol.StatusBusy); err != nil {
		d.log.Debug().Err(err).Uint64("conn_id", conn.ID).Msg("Failed to send busy response")
	}
}

// Close stops accepting submissions: a Submit blocked on a full queue returns
// ErrQueueClosed and closes its connection. Queued connections are still
// served; Stop waits for them.
func (d *Dispatcher) Close() {
	d.queue.Close()
}

// Stop closes the queue and waits for the workers to serve what is left.
// If ctx expires first, in-flight connections are closed and ctx.Err() is
// returned once the workers have exited.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.queue.Close()

		done := make(chan struct{})
		go func() {
			d.pool.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			// Workers may still pick up queued connections; close those first.
			for _, conn := range d.queue.Drain() {
				conn.Close()
				d.rejected.Add(1)
			}
			aborted := d.pool.abortInflight()
			d.log.Warn().Int("aborted", aborted).Msg("Stop deadline exceeded, closing in-flight connections")
			// A worker may pop its last connection between the drain and the abort.
			ticker := time.NewTicker(50 * time.Millisecond)
		wait:
			for {
				select {
				case <-done:
					break wait
				case <-ticker.C:
					d.pool.abortInflight()
				}
			}
			ticker.Stop()
			d.stopErr = ctx.Err()
		}
		if d.cancel != nil {
			d.cancel()
		}
		d.log.Info().Msg("Dispatcher stopped")
	})
	return d.stopErr
}

// Stats returns a snapshot of the runtime counters.
func (d *Dispatcher) Stats() types.Stats {
	return types.Stats{
		Workers:  d.pool.Size(),
		Queued:   d.queue.Len(),
		Active:   d.pool.Active(),
		Served:   d.pool.served.Load(),
		Failed:   d.pool.failed.Load(),
		Rejected: d.rejected.Load(),
	}
}

var _ types.StatsProvider = (*Dispatcher)(nil)
