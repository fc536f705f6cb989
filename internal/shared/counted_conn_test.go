package shared

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountedConn_CountsBothDirections(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	var counter TrafficCounter
	conn := NewCountedConn(server, &counter)
	defer conn.Close()

	go func() {
		client.Write([]byte("ping\x00"))
		io.ReadFull(client, make([]byte, 2))
	}()

	buf := make([]byte, 5)
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)
	_, err = conn.Write([]byte{0, 42})
	require.NoError(t, err)

	assert.EqualValues(t, 5, counter.Received())
	assert.EqualValues(t, 2, counter.Sent())
}

func TestCountedConn_NilCounter(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	assert.Same(t, server, NewCountedConn(server, nil))
}
