package acceptor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"statusd/internal/shared"
	"statusd/internal/shared/logger"
	"statusd/internal/shared/types"
	"statusd/internal/sys/sockopt"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Submitter 接收已 accept 的连接，由 dispatcher 实现。
type Submitter interface {
	Submit(conn *types.Connection) error
}

// Acceptor 负责监听端口并把每个 accept 到的连接交给 Submitter。
type Acceptor struct {
	cfg          types.ServerConf
	submitter    Submitter
	listener     net.Listener
	listenerInfo atomic.Pointer[types.ListenerInfo]
	log          zerolog.Logger
	traffic      shared.TrafficCounter

	closeOnce sync.Once
	waitGroup sync.WaitGroup
}

func New(cfg types.ServerConf, submitter Submitter) *Acceptor {
	return &Acceptor{
		cfg:       cfg,
		submitter: submitter,
		log:       logger.WithComponent("acceptor"),
	}
}

// InitializeListener 打开监听 socket 但不阻塞，返回实际绑定的端口。
// 端口为 0 时由系统分配。
func (a *Acceptor) InitializeListener() (int, error) {
	listener, err := sockopt.ListenTCP4(a.cfg.BindHost, a.cfg.Port, a.cfg.Backlog)
	if err != nil {
		return 0, err
	}
	port, err := sockopt.BoundPort(listener)
	if err != nil {
		listener.Close()
		return 0, err
	}

	a.listener = listener
	a.listenerInfo.Store(&types.ListenerInfo{
		Address: listener.Addr().(*net.TCPAddr).IP.String(),
		Port:    port,
	})
	a.log.Info().
		Str("listen_addr", listener.Addr().String()).
		Int("backlog", a.cfg.Backlog).
		Msg("Acceptor is listening")
	return port, nil
}

// GetListenerInfo returns nil until InitializeListener succeeds.
func (a *Acceptor) GetListenerInfo() *types.ListenerInfo {
	return a.listenerInfo.Load()
}

// Serve runs the accept loop until the listener is closed or ctx is done.
// Accept failures are logged and retried with a growing delay; they never
// stop the loop. Must be called after InitializeListener.
func (a *Acceptor) Serve(ctx context.Context) error {
	if a.listener == nil {
		return fmt.Errorf("acceptor: Serve called before InitializeListener")
	}
	a.waitGroup.Add(1)
	defer a.waitGroup.Done()

	stop := context.AfterFunc(ctx, func() {
		a.listener.Close()
	})
	defer stop()

	var delay time.Duration
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				a.log.Info().Msg("Acceptor listener is closing")
				return nil
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			a.log.Warn().Err(err).Dur("retry_in", delay).Msg("Error accepting connection")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0

		c := types.NewConnection(shared.NewCountedConn(conn, &a.traffic))
		a.log.Debug().
			Uint64("conn_id", c.ID).
			Str("trace_id", c.TraceID).
			Str("client_ip", conn.RemoteAddr().String()).
			Msg("Connection accepted")

		// Submit closes the connection itself when it refuses it.
		if err := a.submitter.Submit(c); err != nil {
			a.log.Debug().Err(err).Uint64("conn_id", c.ID).Msg("Connection not queued")
		}
	}
}

// Traffic returns the byte counters shared by every accepted connection.
func (a *Acceptor) Traffic() *shared.TrafficCounter {
	return &a.traffic
}

// Start 是 InitializeListener + Serve 的组合。
func (a *Acceptor) Start(ctx context.Context) error {
	if _, err := a.InitializeListener(); err != nil {
		return err
	}
	return a.Serve(ctx)
}

// Close closes the listener and waits for Serve to return.
func (a *Acceptor) Close() {
	a.closeOnce.Do(func() {
		if a.listener != nil {
			a.listener.Close()
		}
		a.waitGroup.Wait()
		a.log.Info().Msg("Acceptor has been shut down")
	})
}
