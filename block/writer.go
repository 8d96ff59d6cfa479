package block

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"sync"
)

// Request is a request frame: a command name followed by its parameters.
type Request struct {
	Command string
	Params  [][]byte
}

// NewRequest creates a request from text parameters.
//
//	req := NewRequest("set", "mykey", "myvalue")
func NewRequest(cmd string, params ...string) *Request {
	req := &Request{
		Command: cmd,
		Params:  make([][]byte, len(params)),
	}
	for i, p := range params {
		req.Params[i] = []byte(p)
	}
	return req
}

// Size returns the number of bytes the request occupies on the wire.
func (r *Request) Size() int {
	n := blockSize(len(r.Command))
	for _, p := range r.Params {
		n += blockSize(len(p))
	}
	return n + len(Newline)
}

func blockSize(n int) int {
	return len(strconv.Itoa(n)) + len(Newline) + n + len(Newline)
}

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 256))
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	// Don't keep buffers grown by large values around
	if buf.Cap() > 64<<10 {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// WriteBlock writes a single block: <len>\n<data>\n
func WriteBlock(w io.Writer, data []byte) error {
	var lenBuf [maxLengthDigits + 1]byte
	line := strconv.AppendInt(lenBuf[:0], int64(len(data)), 10)
	line = append(line, '\n')

	if _, err := w.Write(line); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, Newline)
	return err
}

// WriteFrameEnd writes the empty length line that closes a frame.
func WriteFrameEnd(w io.Writer) error {
	_, err := io.WriteString(w, Newline)
	return err
}

// WriteRequest serializes a request frame and writes it to w.
// Format: block(command) block(param)* \n
//
// It does not flush: the caller owns the buffering policy of w.
//
// Performance considerations:
//   - Writes straight into a bufio.Writer when available
//   - Falls back to a pooled buffer so other writers get one Write call
func WriteRequest(w io.Writer, req *Request) error {
	if bw, ok := w.(*bufio.Writer); ok {
		return writeRequestBuffered(bw, req)
	}
	return writeRequestUnbuffered(w, req)
}

func writeRequestBuffered(bw *bufio.Writer, req *Request) error {
	writeBlockBuffered(bw, []byte(req.Command))
	for _, p := range req.Params {
		writeBlockBuffered(bw, p)
	}
	// bufio.Writer keeps the first error and returns it from every later call
	_, err := bw.WriteString(Newline)
	return err
}

func writeBlockBuffered(bw *bufio.Writer, data []byte) {
	bw.WriteString(strconv.Itoa(len(data)))
	bw.WriteByte('\n')
	bw.Write(data)
	bw.WriteByte('\n')
}

func writeRequestUnbuffered(w io.Writer, req *Request) error {
	buf := getBuffer()
	defer putBuffer(buf)

	buf.Grow(req.Size())

	// Writes to bytes.Buffer never fail
	_ = WriteBlock(buf, []byte(req.Command))
	for _, p := range req.Params {
		_ = WriteBlock(buf, p)
	}
	_ = WriteFrameEnd(buf)

	_, err := w.Write(buf.Bytes())
	return err
}
