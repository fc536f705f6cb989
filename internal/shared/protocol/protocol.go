package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize 是一条消息的最大字节数，包含结尾的 NUL。
const MaxMessageSize = 256

// MaxPayloadSize 是去掉结尾 NUL 后消息正文的最大长度。
const MaxPayloadSize = MaxMessageSize - 1

// ResponseSize 是服务端回复的固定字节数。
const ResponseSize = 2

// ResponseCode 是服务端回复的 16 位状态码，按网络字节序传输。
type ResponseCode uint16

const (
	StatusAccepted      ResponseCode = 42
	StatusTooLong       ResponseCode = 413
	StatusInternalError ResponseCode = 500
	StatusBusy          ResponseCode = 503
)

func (c ResponseCode) String() string {
	switch c {
	case StatusAccepted:
		return "accepted"
	case StatusTooLong:
		return "too-long"
	case StatusInternalError:
		return "internal-error"
	case StatusBusy:
		return "busy"
	default:
		return fmt.Sprintf("code(%d)", uint16(c))
	}
}

var (
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrEmbeddedNull   = errors.New("message contains a null byte")
)

// Message 是从连接中读到的一条消息。
type Message struct {
	Data []byte
	// Truncated 表示读满 MaxMessageSize 字节仍未遇到 NUL。
	Truncated bool
}

func (m Message) String() string {
	return string(m.Data)
}

// Status returns the response code the server sends for this message.
func (m Message) Status() ResponseCode {
	if m.Truncated {
		return StatusTooLong
	}
	return StatusAccepted
}

// ReadMessage 逐字节读取，直到遇到 NUL 或读满 MaxMessageSize 字节。
// 在 NUL 之前遇到 EOF 视为消息结束。逐字节读取保证不会消费消息之后的数据。
func ReadMessage(r io.Reader) (Message, error) {
	buf := make([]byte, 0, MaxMessageSize)
	var b [1]byte
	for len(buf) < MaxMessageSize {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return Message{Data: buf}, nil
			}
			return Message{Data: buf}, fmt.Errorf("error reading stream message: %w", err)
		}
		if b[0] == 0 {
			return Message{Data: buf}, nil
		}
		buf = append(buf, b[0])
	}
	return Message{Data: buf, Truncated: true}, nil
}

// ValidateMessage 在发送前检查消息是否能被完整接收。
func ValidateMessage(msg []byte) error {
	if len(msg) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLong, len(msg), MaxPayloadSize)
	}
	for _, b := range msg {
		if b == 0 {
			return ErrEmbeddedNull
		}
	}
	return nil
}

// EncodeMessage 返回带 NUL 结尾的线上格式。
func EncodeMessage(msg []byte) ([]byte, error) {
	if err := ValidateMessage(msg); err != nil {
		return nil, err
	}
	buf := make([]byte, len(msg)+1)
	copy(buf, msg)
	return buf, nil
}

// WriteMessage 将消息及结尾 NUL 一次写出。
func WriteMessage(w io.Writer, msg []byte) error {
	buf, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("error sending on stream socket: %w", err)
	}
	return nil
}

// EncodeResponse 返回状态码的 2 字节网络序表示。
func EncodeResponse(code ResponseCode) [ResponseSize]byte {
	var buf [ResponseSize]byte
	binary.BigEndian.PutUint16(buf[:], uint16(code))
	return buf
}

// WriteResponse 写出恰好 2 个字节的状态码。
func WriteResponse(w io.Writer, code ResponseCode) error {
	buf := EncodeResponse(code)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("error sending response to client: %w", err)
	}
	return nil
}

// ReadResponse 读取恰好 2 个字节并按网络序解码。
func ReadResponse(r io.Reader) (ResponseCode, error) {
	var buf [ResponseSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("error receiving response from server: %w", err)
	}
	return ResponseCode(binary.BigEndian.Uint16(buf[:])), nil
}
