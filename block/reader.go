package block

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
)

// ReadBlock reads a single block from r.
// Block format: <len>\n<data>\n
//
// end is true when the empty length line closing a frame was read; data is
// nil in that case. A block declared with length 0 is a real, empty block and
// does not end the frame.
//
// Go errors returned:
//   - FramingError: malformed length, short payload, missing terminator,
//     or the stream ended (io.EOF) before the block was complete
//   - ConnectionError: any other I/O error from r
//
// The length line may end with \r\n, the payload terminator may be \r\n.
func ReadBlock(r *bufio.Reader) (data []byte, end bool, err error) {
	line, err := r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		return nil, false, &FramingError{Step: StepLength, Message: "length line too long"}
	}
	if err != nil {
		return nil, false, readError(StepLength, "failed to read length line", err)
	}

	line = line[:len(line)-1]
	line = bytes.TrimSuffix(line, []byte{'\r'})

	if len(line) == 0 {
		return nil, true, nil
	}

	size, err := parseLength(line)
	if err != nil {
		return nil, false, err
	}

	data = make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, false, readError(StepPayload, "short payload", err)
		}
	}

	if err := readTerminator(r); err != nil {
		return nil, false, err
	}

	return data, false, nil
}

// ReadFrame reads blocks until the end of the current frame.
// The returned slice is empty (not nil) for an empty frame.
// The next call to ReadFrame starts reading a fresh frame.
func ReadFrame(r *bufio.Reader) ([][]byte, error) {
	blocks := make([][]byte, 0, 2)
	for {
		data, end, err := ReadBlock(r)
		if err != nil {
			return nil, err
		}
		if end {
			return blocks, nil
		}
		blocks = append(blocks, data)
	}
}

// parseLength parses a block length: ASCII digits only, bounded by MaxBlockSize.
func parseLength(line []byte) (int, error) {
	if len(line) > maxLengthDigits {
		return 0, &FramingError{Step: StepLength, Message: "length line too long"}
	}

	n := 0
	for _, c := range line {
		if c < '0' || c > '9' {
			return 0, &FramingError{Step: StepLength, Message: "invalid length " + quote(line)}
		}
		n = n*10 + int(c-'0')
		if n > MaxBlockSize {
			return 0, &FramingError{Step: StepLength, Message: "block exceeds maximum size"}
		}
	}
	return n, nil
}

func readTerminator(r *bufio.Reader) error {
	b, err := r.ReadByte()
	if err == nil && b == '\r' {
		b, err = r.ReadByte()
	}
	if err != nil {
		return readError(StepTerminator, "missing payload terminator", err)
	}
	if b != '\n' {
		return &FramingError{Step: StepTerminator, Message: "invalid payload terminator " + quote([]byte{b})}
	}
	return nil
}

// readError classifies a read failure: a stream that ends mid-frame is a
// framing problem, everything else comes from the transport.
func readError(step, msg string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &FramingError{Step: step, Message: msg, Err: err}
	}
	return &ConnectionError{Op: "read", Err: err}
}

func quote(b []byte) string {
	if len(b) > 32 {
		b = b[:32]
	}
	return strconv.Quote(string(b))
}
