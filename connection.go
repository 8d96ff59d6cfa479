package ssdb

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"github.com/pior/ssdb/block"
)

const (
	defaultReadBufferSize  = 4096
	defaultWriteBufferSize = 4096
)

// Connection wraps a network connection with buffered I/O for the block protocol.
// It runs one request/response cycle at a time and is not safe for concurrent use:
// Client serializes access to it.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

// NewConnection creates a Connection with default buffer sizes.
func NewConnection(conn net.Conn) *Connection {
	return newConnectionSize(conn, defaultReadBufferSize, defaultWriteBufferSize)
}

func newConnectionSize(conn net.Conn, readSize, writeSize int) *Connection {
	if readSize <= 0 {
		readSize = defaultReadBufferSize
	}
	if writeSize <= 0 {
		writeSize = defaultWriteBufferSize
	}
	return &Connection{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, readSize),
		writer: bufio.NewWriterSize(conn, writeSize),
	}
}

// Send writes the request frame, flushes it and reads the response frame.
// The whole request reaches the transport before the response is read.
//
// The context deadline, if any, applies to the socket for the whole exchange.
func (c *Connection) Send(ctx context.Context, req *block.Request) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}

	if err := block.WriteRequest(c.writer, req); err != nil {
		return nil, &block.ConnectionError{Op: "write", Err: err}
	}

	if err := c.writer.Flush(); err != nil {
		return nil, &block.ConnectionError{Op: "flush", Err: err}
	}

	return block.ReadFrame(c.reader)
}

// Close flushes any buffered request bytes and closes the network connection.
func (c *Connection) Close() error {
	var flushErr error
	if c.writer.Buffered() > 0 {
		flushErr = c.writer.Flush()
	}
	return errors.Join(flushErr, c.conn.Close())
}

// abort closes the network connection without flushing.
func (c *Connection) abort() {
	_ = c.conn.Close()
}

// RemoteAddr returns the address of the server.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
