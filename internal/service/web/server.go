package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"statusd/internal/shared/logger"
	"statusd/internal/shared/types"
)

// loggingListener 记录每个被接受的监控连接
type loggingListener struct {
	net.Listener
	log zerolog.Logger
}

func (l loggingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		l.log.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("Monitor connection accepted")
	}
	return conn, err
}

// basicAuthMiddleware 检查 admin_user 和 admin_password 是否已配置。
// 如果配置了，它将强制执行 HTTP Basic Authentication。
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	// 如果用户名或密码未设置，则不启用认证，直接返回原始处理器
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Server 是 dispatcher 的监控面：健康检查、就绪检查、统计和事件推送。
type Server struct {
	cfg        types.AdminConf
	handler    *Handler
	hub        *Hub
	httpServer *http.Server
	ready      atomic.Bool
	log        zerolog.Logger
}

func NewServer(cfg types.AdminConf, stats types.StatsProvider, hub *Hub) *Server {
	s := &Server{
		cfg: cfg,
		hub: hub,
		log: logger.WithComponent("monitor"),
	}
	s.handler = NewHandler(stats, &s.ready)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handler.HandleHealth)
	mux.HandleFunc("/ready", s.handler.HandleReady)

	// --- 认证保护的 API ---
	mux.Handle("/api/stats", basicAuthMiddleware(http.HandlerFunc(s.handler.HandleStats), s.cfg.User, s.cfg.Password))

	// --- WebSocket Endpoint (公开，无需认证) ---
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(s.hub, w, r)
	})
	return mux
}

// SetReady flips the /ready answer.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to start monitor on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve 在给定 listener 上提供服务，ctx 结束时优雅关闭。
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.log.Info().Msgf("Monitor is listening on http://%s", listener.Addr())

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("Monitor shutdown error")
		}
	})
	defer stop()

	err := s.httpServer.Serve(loggingListener{Listener: listener, log: s.log})
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Msg("Monitor stopped.")
	return nil
}
