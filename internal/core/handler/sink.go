package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"statusd/internal/shared/protocol"
	"statusd/internal/shared/types"
)

// MessageSink 接收 worker 读到的每一条消息。
type MessageSink interface {
	Deliver(ctx context.Context, conn *types.Connection, msg protocol.Message) error
}

// ResponseObserver 在状态码成功写回客户端之后收到通知，code 是实际发送的值。
type ResponseObserver interface {
	Responded(conn *types.Connection, msg protocol.Message, code protocol.ResponseCode)
}

// SinkFunc adapts a function to MessageSink.
type SinkFunc func(ctx context.Context, conn *types.Connection, msg protocol.Message) error

func (f SinkFunc) Deliver(ctx context.Context, conn *types.Connection, msg protocol.Message) error {
	return f(ctx, conn, msg)
}

// ConsoleSink prints "Client <id> says '<message>'" lines to out.
type ConsoleSink struct {
	out io.Writer
	mu  sync.Mutex
}

func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

func (s *ConsoleSink) Deliver(_ context.Context, conn *types.Connection, msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "Client %d says '%s'\n", conn.ID, msg.Data)
	return err
}

// MultiSink delivers to every sink and joins their errors.
type MultiSink []MessageSink

func (m MultiSink) Deliver(ctx context.Context, conn *types.Connection, msg protocol.Message) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Deliver(ctx, conn, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
