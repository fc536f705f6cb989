package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusd/internal/shared/protocol"
	"statusd/internal/shared/types"
)

// recordingSink keeps every delivered message.
type recordingSink struct {
	messages []string
	err      error
}

func (s *recordingSink) Deliver(_ context.Context, _ *types.Connection, msg protocol.Message) error {
	s.messages = append(s.messages, msg.String())
	return s.err
}

// exchange runs Handle on the server side of a pipe while the client writes
// payload, and returns the client's view of the reply.
func exchange(t *testing.T, h *Handler, payload []byte) ([]byte, error) {
	t.Helper()
	server, client := net.Pipe()
	defer client.Close()
	conn := types.NewConnection(server)

	errCh := make(chan error, 1)
	go func() {
		err := h.Handle(context.Background(), 0, conn)
		conn.Close()
		errCh <- err
	}()

	go func() {
		// The handler stops reading at the terminator or the size limit, so
		// a short write here may be cut off; that is expected.
		_, _ = client.Write(payload)
	}()

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, _ := io.ReadAll(client)
	return reply, <-errCh
}

func TestHandle_Ping(t *testing.T) {
	var out bytes.Buffer
	sink := &recordingSink{}
	h := New(MultiSink{NewConsoleSink(&out), sink}, time.Second)

	reply, err := exchange(t, h, []byte("ping\x00"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 42}, reply)
	assert.Equal(t, []string{"ping"}, sink.messages)
	assert.Contains(t, out.String(), "says 'ping'")
}

func TestHandle_UnterminatedMaximum(t *testing.T) {
	sink := &recordingSink{}
	h := New(sink, time.Second)

	reply, err := exchange(t, h, []byte(strings.Repeat("z", protocol.MaxMessageSize)))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x9d}, reply) // 413
	require.Len(t, sink.messages, 1)
	assert.Len(t, sink.messages[0], protocol.MaxMessageSize)
}

func TestHandle_SinkFailure(t *testing.T) {
	h := New(&recordingSink{err: errors.New("disk full")}, time.Second)

	reply, err := exchange(t, h, []byte("hello\x00"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xf4}, reply) // 500
}

func TestHandle_ReadTimeout(t *testing.T) {
	h := New(nil, 30*time.Millisecond)

	server, client := net.Pipe()
	defer client.Close()
	conn := types.NewConnection(server)
	defer conn.Close()

	err := h.Handle(context.Background(), 0, conn)
	require.Error(t, err)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestHandle_CancelledContext(t *testing.T) {
	h := New(nil, 0)
	server, client := net.Pipe()
	defer client.Close()
	conn := types.NewConnection(server)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.Handle(ctx, 0, conn), context.Canceled)
}

// recordingObserver keeps the codes reported after each reply.
type recordingObserver struct {
	codes []protocol.ResponseCode
}

func (o *recordingObserver) Responded(_ *types.Connection, _ protocol.Message, code protocol.ResponseCode) {
	o.codes = append(o.codes, code)
}

func TestHandle_ObserverSeesCodeSent(t *testing.T) {
	obs := &recordingObserver{}
	h := New(&recordingSink{err: errors.New("disk full")}, time.Second).WithObserver(obs)

	reply, err := exchange(t, h, []byte("hello\x00"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xf4}, reply)
	assert.Equal(t, []protocol.ResponseCode{protocol.StatusInternalError}, obs.codes)

	obs.codes = nil
	h = New(&recordingSink{}, time.Second).WithObserver(obs)
	_, err = exchange(t, h, []byte("hello\x00"))
	require.NoError(t, err)
	assert.Equal(t, []protocol.ResponseCode{protocol.StatusAccepted}, obs.codes)
}
