package client

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"statusd/internal/shared/logger"
	"statusd/internal/shared/protocol"
)

// 发送前的校验错误，与 protocol 包中的相同，便于调用方只依赖 client 包。
var (
	ErrMessageTooLong = protocol.ErrMessageTooLong
	ErrEmbeddedNull   = protocol.ErrEmbeddedNull
)

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Client 向服务端发送一条消息并等待 2 字节状态码。
type Client struct {
	Dial    DialFunc
	Timeout time.Duration
}

// New returns a Client that dials IPv4 TCP with the given I/O timeout.
func New(timeout time.Duration) *Client {
	d := &net.Dialer{Timeout: timeout}
	return &Client{
		Dial:    d.DialContext,
		Timeout: timeout,
	}
}

// Send validates message, connects to hostname:port, sends the message with
// its terminator and returns the decoded response code. Validation errors are
// returned before any connection attempt.
func (c *Client) Send(ctx context.Context, hostname string, port int, message string) (protocol.ResponseCode, error) {
	payload := []byte(message)
	if err := protocol.ValidateMessage(payload); err != nil {
		return 0, err
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port: %d", port)
	}

	addr := net.JoinHostPort(hostname, strconv.Itoa(port))
	logger.Debug().Str("addr", addr).Str("message", message).Msg("Sending message")

	conn, err := c.Dial(ctx, "tcp4", addr)
	if err != nil {
		return 0, fmt.Errorf("error connecting stream socket: %w", err)
	}
	defer conn.Close()

	var deadline time.Time
	if c.Timeout > 0 {
		deadline = time.Now().Add(c.Timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	if !deadline.IsZero() {
		if err := conn.SetDeadline(deadline); err != nil {
			return 0, err
		}
	}

	if err := protocol.WriteMessage(conn, payload); err != nil {
		return 0, err
	}
	code, err := protocol.ReadResponse(conn)
	if err != nil {
		return 0, err
	}
	logger.Debug().Str("addr", addr).Uint16("code", uint16(code)).Msg("Response received")
	return code, nil
}

// SendMessage is Send with a default client.
func SendMessage(ctx context.Context, hostname string, port int, message string) (protocol.ResponseCode, error) {
	return New(10*time.Second).Send(ctx, hostname, port, message)
}
