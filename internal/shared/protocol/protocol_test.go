package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// errReader returns data and then a non-EOF error.
type errReader struct {
	data []byte
	err  error
}

func (r *errReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestReadMessage_StopsAtNull(t *testing.T) {
	r := bytes.NewReader([]byte("ping\x00trailing"))
	msg, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, "ping", msg.String())
	assert.False(t, msg.Truncated)
	assert.Equal(t, StatusAccepted, msg.Status())

	// Bytes after the terminator are left unread.
	rest, _ := io.ReadAll(r)
	assert.Equal(t, "trailing", string(rest))
}

func TestReadMessage_MaxLengthWithTerminator(t *testing.T) {
	payload := strings.Repeat("a", MaxPayloadSize)
	msg, err := ReadMessage(strings.NewReader(payload + "\x00"))
	require.NoError(t, err)
	assert.Len(t, msg.Data, MaxPayloadSize)
	assert.False(t, msg.Truncated)
}

func TestReadMessage_NoTerminatorWithinLimit(t *testing.T) {
	r := strings.NewReader(strings.Repeat("b", MaxMessageSize+10))
	msg, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Len(t, msg.Data, MaxMessageSize)
	assert.True(t, msg.Truncated)
	assert.Equal(t, StatusTooLong, msg.Status())
	assert.Equal(t, 10, r.Len())
}

func TestReadMessage_EOFEndsMessage(t *testing.T) {
	msg, err := ReadMessage(strings.NewReader("half"))
	require.NoError(t, err)
	assert.Equal(t, "half", msg.String())
	assert.False(t, msg.Truncated)

	msg, err = ReadMessage(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, msg.Data)
}

func TestReadMessage_TransportError(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := ReadMessage(&errReader{data: []byte("ab"), err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestValidateMessage(t *testing.T) {
	assert.NoError(t, ValidateMessage(nil))
	assert.NoError(t, ValidateMessage(bytes.Repeat([]byte("x"), MaxPayloadSize)))
	assert.ErrorIs(t, ValidateMessage(bytes.Repeat([]byte("x"), MaxMessageSize)), ErrMessageTooLong)
	assert.ErrorIs(t, ValidateMessage(bytes.Repeat([]byte{0xff}, MaxMessageSize)), ErrMessageTooLong)
	assert.ErrorIs(t, ValidateMessage([]byte("a\x00b")), ErrEmbeddedNull)
}

func TestWriteMessage_AppendsTerminator(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, []byte("ping")))
	assert.Equal(t, []byte("ping\x00"), buf.Bytes())
}

func TestResponse_NetworkByteOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, StatusAccepted))
	assert.Equal(t, []byte{0, 42}, buf.Bytes())

	buf.Reset()
	require.NoError(t, WriteResponse(&buf, StatusBusy))
	assert.Equal(t, []byte{0x01, 0xf7}, buf.Bytes())

	code, err := ReadResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, StatusBusy, code)
}

func TestReadResponse_Short(t *testing.T) {
	_, err := ReadResponse(bytes.NewReader([]byte{0}))
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
