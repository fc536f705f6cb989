package handler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"statusd/internal/shared/logger"
	"statusd/internal/shared/protocol"
	"statusd/internal/shared/types"
)

// Handler 实现单个连接上的协议: 有界读取、输出消息、回复 2 字节状态码。
// 连接由调用方 (worker) 关闭。
type Handler struct {
	sink      MessageSink
	observer  ResponseObserver
	ioTimeout time.Duration
	log       zerolog.Logger
}

// New creates a Handler. ioTimeout bounds the whole exchange; 0 disables it.
func New(sink MessageSink, ioTimeout time.Duration) *Handler {
	return &Handler{
		sink:      sink,
		ioTimeout: ioTimeout,
		log:       logger.WithComponent("handler"),
	}
}

// WithObserver registers o to be told about every reply written.
func (h *Handler) WithObserver(o ResponseObserver) *Handler {
	h.observer = o
	return h
}

// Handle reads one message from conn and replies with its status code.
func (h *Handler) Handle(ctx context.Context, workerID int, conn *types.Connection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.ioTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(h.ioTimeout)); err != nil {
			return err
		}
	}

	h.log.Info().
		Int("worker", workerID).
		Uint64("conn_id", conn.ID).
		Str("trace_id", conn.TraceID).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msgf("Worker %d: new connection %d", workerID, conn.ID)

	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		return err
	}

	code := msg.Status()
	if h.sink != nil {
		if err := h.sink.Deliver(ctx, conn, msg); err != nil {
			h.log.Error().Err(err).Uint64("conn_id", conn.ID).Msg("Message sink failed")
			code = protocol.StatusInternalError
		}
	}

	if err := protocol.WriteResponse(conn, code); err != nil {
		return err
	}
	if h.observer != nil {
		h.observer.Responded(conn, msg, code)
	}

	h.log.Debug().
		Uint64("conn_id", conn.ID).
		Int("bytes", len(msg.Data)).
		Bool("truncated", msg.Truncated).
		Uint16("code", uint16(code)).
		Msg("Response sent")
	return nil
}
