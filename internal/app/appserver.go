package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"statusd/internal/core/acceptor"
	"statusd/internal/core/dispatcher"
	"statusd/internal/core/handler"
	"statusd/internal/service/web"
	"statusd/internal/shared/logger"
	"statusd/internal/shared/types"
)

// AppServer is the application's main struct. It owns every component of
// one server instance; nothing is kept in package-level state.
type AppServer struct {
	cfg *types.Config

	hub        *web.Hub
	dispatcher *dispatcher.Dispatcher
	acceptor   *acceptor.Acceptor
	monitor    *web.Server
	log        zerolog.Logger

	cancel   context.CancelFunc
	group    *errgroup.Group
	started  bool
	stopOnce sync.Once
	stopErr  error
}

// AppServer 同时作为监控面的统计来源
var _ types.StatsProvider = (*AppServer)(nil)

// New wires the components. Received messages are printed to out.
func New(cfg *types.Config, out io.Writer) *AppServer {
	s := &AppServer{
		cfg: cfg,
		hub: web.NewHub(),
		log: logger.WithComponent("app"),
	}

	h := handler.New(handler.NewConsoleSink(out), cfg.IOTimeoutDuration()).WithObserver(s.hub)
	s.dispatcher = dispatcher.New(cfg.DispatchConf, h)
	s.acceptor = acceptor.New(cfg.ServerConf, s.dispatcher)
	s.monitor = web.NewServer(cfg.AdminConf, s, s.hub)
	return s
}

// Start opens the listening socket and launches the workers, the accept
// loop and the monitor. It returns the bound port without blocking.
func (s *AppServer) Start(ctx context.Context) (int, error) {
	if s.started {
		return 0, errors.New("app: server already started")
	}
	port, err := s.acceptor.InitializeListener()
	if err != nil {
		return 0, err
	}
	s.started = true

	// Workers keep serving queued connections after ctx is cancelled; Stop
	// decides when they go away.
	s.dispatcher.Start(context.WithoutCancel(ctx))

	ctx, s.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.group = g

	g.Go(func() error {
		return s.acceptor.Serve(gctx)
	})
	g.Go(func() error {
		s.hub.Run(gctx)
		return nil
	})
	if s.cfg.AdminConf.Port > 0 {
		g.Go(func() error {
			return s.monitor.ListenAndServe(gctx)
		})
	} else {
		s.log.Warn().Msg("Monitor is disabled.")
	}
	if s.cfg.StatsInterval > 0 {
		g.Go(func() error {
			s.statsLoop(gctx, time.Duration(s.cfg.StatsInterval)*time.Second)
			return nil
		})
	}

	s.monitor.SetReady(true)
	s.log.Info().
		Int("port", port).
		Int("workers", s.cfg.Workers).
		Int("queue_size", s.cfg.QueueSize).
		Str("full_queue_policy", string(s.cfg.FullQueuePolicy)).
		Msg("Server started")
	return port, nil
}

// Run starts the server and blocks until ctx is cancelled or a component
// fails, then shuts down gracefully.
func (s *AppServer) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if _, err := s.Start(ctx); err != nil {
		return err
	}
	runErr := s.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Wait blocks until the accept loop, the hub and the monitor have all
// returned. It returns the first component error.
func (s *AppServer) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// Stop gracefully shuts down the server: no new connections are accepted,
// queued connections are still served, and ctx bounds the whole drain.
func (s *AppServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.monitor.SetReady(false)
		if s.cancel != nil {
			s.cancel()
		}
		// 先关闭队列，唤醒阻塞在 Submit 上的 acceptor
		s.dispatcher.Close()
		s.acceptor.Close()
		if err := s.Wait(); err != nil {
			s.log.Warn().Err(err).Msg("Component exited with error")
		}
		s.stopErr = s.dispatcher.Stop(ctx)

		stats := s.Stats()
		s.log.Info().
			Uint64("served", stats.Served).
			Uint64("failed", stats.Failed).
			Uint64("rejected", stats.Rejected).
			Msg("Server stopped")
	})
	return s.stopErr
}

// Stats merges dispatcher counters with the acceptor's traffic counters.
func (s *AppServer) Stats() types.Stats {
	stats := s.dispatcher.Stats()
	traffic := s.acceptor.Traffic()
	stats.BytesIn = traffic.Received()
	stats.BytesOut = traffic.Sent()
	return stats
}

// GetListenerInfo returns nil until Start succeeds.
func (s *AppServer) GetListenerInfo() *types.ListenerInfo {
	return s.acceptor.GetListenerInfo()
}

// Hub exposes the event hub, mainly for tests and embedding.
func (s *AppServer) Hub() *web.Hub {
	return s.hub
}

func (s *AppServer) statsLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.hub.BroadcastStats(s.Stats())
		case <-ctx.Done():
			return
		}
	}
}
