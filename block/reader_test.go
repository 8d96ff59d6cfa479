package block

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestReadBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
		end      bool
	}{
		{name: "text", input: "5\nhello\n", expected: []byte("hello")},
		{name: "frame end", input: "\n", end: true},
		{name: "frame end crlf", input: "\r\n", end: true},
		{name: "zero length", input: "0\n\n", expected: []byte{}},
		{name: "embedded newline", input: "3\na\nb\n", expected: []byte("a\nb")},
		{name: "crlf terminators", input: "2\r\nok\r\n", expected: []byte("ok")},
		{name: "non-ascii", input: "6\n测试\n", expected: []byte("测试")},
		{name: "binary", input: "2\n\xff\x00\n", expected: []byte{0xff, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, end, err := ReadBlock(newReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.end, end)
			assert.Equal(t, tt.expected, data)
		})
	}
}

func TestReadBlock_FramingErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		step  string
	}{
		{name: "closed stream", input: "", step: StepLength},
		{name: "length without newline", input: "5", step: StepLength},
		{name: "non numeric length", input: "abc\n", step: StepLength},
		{name: "negative length", input: "-1\n", step: StepLength},
		{name: "signed length", input: "+1\nx\n", step: StepLength},
		{name: "spaces in length", input: " 1\nx\n", step: StepLength},
		{name: "length too large", input: "999999999\n", step: StepLength},
		{name: "length line overflow", input: "123456789012345678901\n", step: StepLength},
		{name: "declared length exceeds stream", input: "10\nshort\n", step: StepPayload},
		{name: "missing terminator", input: "2\nok", step: StepTerminator},
		{name: "wrong terminator", input: "2\nokX", step: StepTerminator},
		{name: "carriage return only", input: "2\nok\rX", step: StepTerminator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, end, err := ReadBlock(newReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, data)
			assert.False(t, end)

			var fe *FramingError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.step, fe.Step)
			assert.True(t, ShouldCloseConnection(err))
		})
	}
}

func TestReadBlock_ShortReadUnwrapsEOF(t *testing.T) {
	_, _, err := ReadBlock(newReader("10\nshort"))
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type errReader struct{ err error }

func (r errReader) Read(p []byte) (int, error) { return 0, r.err }

func TestReadBlock_TransportError(t *testing.T) {
	netErr := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}
	_, _, err := ReadBlock(bufio.NewReader(errReader{err: netErr}))
	require.Error(t, err)

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "read", ce.Op)
	assert.ErrorIs(t, err, netErr)
}

func TestReadBlock_LengthLineTooLong(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader(strings.Repeat("1", 64)+"\n"), 16)
	_, _, err := ReadBlock(r)

	var fe *FramingError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StepLength, fe.Step)
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected [][]byte
	}{
		{name: "empty frame", input: "\n", expected: [][]byte{}},
		{name: "status only", input: "2\nok\n\n", expected: [][]byte{[]byte("ok")}},
		{name: "status and value", input: "2\nok\n3\nbar\n\n", expected: [][]byte{[]byte("ok"), []byte("bar")}},
		{name: "empty value is kept", input: "2\nok\n0\n\n\n", expected: [][]byte{[]byte("ok"), {}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, err := ReadFrame(newReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, blocks)
		})
	}
}

func TestReadFrame_MissingFrameEnd(t *testing.T) {
	_, err := ReadFrame(newReader("2\nok\n"))

	var fe *FramingError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StepLength, fe.Step)
}

func TestReadFrame_Consecutive(t *testing.T) {
	r := newReader("2\nok\n1\n1\n\n\n9\nnot_found\n\n")

	first, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ok"), []byte("1")}, first)

	// Reading past a frame end starts a fresh frame
	second, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Empty(t, second)

	third, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("not_found")}, third)
}

func TestRequestFrameScan(t *testing.T) {
	for k := range 5 {
		params := make([]string, k)
		for i := range params {
			params[i] = strings.Repeat("p", i)
		}

		var buf bytes.Buffer
		require.NoError(t, WriteRequest(&buf, NewRequest("cmd", params...)))

		r := bufio.NewReader(&buf)
		read := 0
		for {
			_, end, err := ReadBlock(r)
			require.NoError(t, err)
			if end {
				break
			}
			read++
		}
		assert.Equal(t, k+1, read, "request with %d params", k)

		_, _, err := ReadBlock(r)
		assert.Error(t, err, "stream is exhausted after the frame")
	}
}

func TestRoundTrip(t *testing.T) {
	values := [][]byte{
		[]byte("plain"),
		[]byte("line\nbreak"),
		[]byte("\r\n\r\n"),
		[]byte("测试"),
		{},
		{0x00, 0x01, 0xfe, 0xff},
		bytes.Repeat([]byte("x"), 70000),
	}

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	for _, v := range values {
		require.NoError(t, WriteBlock(bw, v))
	}
	require.NoError(t, WriteFrameEnd(bw))
	require.NoError(t, bw.Flush())

	blocks, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, values, blocks)
}

func TestShouldCloseConnection(t *testing.T) {
	assert.False(t, ShouldCloseConnection(nil))
	assert.True(t, ShouldCloseConnection(&FramingError{Step: StepLength}))
	assert.True(t, ShouldCloseConnection(&ConnectionError{Op: "read", Err: io.EOF}))
	assert.True(t, ShouldCloseConnection(errors.New("unknown")))
}

func TestErrorMessages(t *testing.T) {
	err := &FramingError{Step: StepPayload, Message: "short payload", Err: io.ErrUnexpectedEOF}
	assert.Equal(t, "framing error (payload): short payload: unexpected EOF", err.Error())

	err = &FramingError{Step: StepLength, Message: "invalid length"}
	assert.Equal(t, "framing error (length): invalid length", err.Error())

	cerr := &ConnectionError{Op: "dial", Err: errors.New("refused")}
	assert.Equal(t, "connection error during dial: refused", cerr.Error())
}
