package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/dStream/rpc/codec"
	"github.com/ValentinKolb/dStream/rpc/transport"
)

// streamConn implements transport.IMessageConn on top of a byte stream
// (unix socket, named pipe, net.Pipe) by prefixing every message with its length
type streamConn struct {
	conn     net.Conn
	maxBytes int
	header   [4]byte // only used by the reader goroutine
}

// NewStreamConn wraps a stream connection into a message connection.
// Messages larger than maxBytes (if > 0) are rejected when reading.
func NewStreamConn(conn net.Conn, maxBytes int) transport.IMessageConn {
	return &streamConn{conn: conn, maxBytes: maxBytes}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IMessageConn)
// --------------------------------------------------------------------------

// WriteMessage writes a message with the format:
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data
func (c *streamConn) WriteMessage(data []byte) error {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(c.conn)
	return err
}

func (c *streamConn) ReadMessage() ([]byte, error) {
	if _, err := io.ReadFull(c.conn, c.header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(c.header[:])
	if c.maxBytes > 0 && uint64(length) > uint64(c.maxBytes) {
		// the stream cannot be resynchronized without reading the oversized message
		return nil, fmt.Errorf("%w: message of %d bytes exceeds limit of %d", codec.ErrFrameTooLarge, length, c.maxBytes)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(c.conn, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *streamConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *streamConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *streamConn) Close() error {
	return c.conn.Close()
}
