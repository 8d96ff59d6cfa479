// Package block provides a low-level wire protocol implementation for the
// SSDB client protocol.
//
// The protocol is built from length-prefixed blocks grouped into frames.
// A block is its byte length in ASCII decimal, a newline, the bytes
// themselves and a trailing newline. A frame is a sequence of blocks closed
// by an empty length line:
//
//	3\nset\n      <- command block
//	3\nkey\n      <- parameter block
//	5\nvalue\n    <- parameter block
//	\n            <- frame end
//
// This package only deals with serialization and parsing. It does not own
// connections and does not interpret the content of a frame; see the parent
// ssdb package for the request/response engine built on top of it.
//
// # Serialization and Parsing
//
// WriteRequest serializes a request frame:
//
//	bw := bufio.NewWriter(conn)
//	err := block.WriteRequest(bw, block.NewRequest("get", "mykey"))
//
// ReadFrame parses a response frame:
//
//	blocks, err := block.ReadFrame(bufio.NewReader(conn))
//	if err != nil {
//	    if block.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//
// Lengths are exact byte counts, so block payloads may carry any byte,
// newlines included.
//
// # Error Handling
//
//   - FramingError: malformed or truncated framing, CLOSE connection
//   - ConnectionError: network/I/O error, connection already broken
//
// Use ShouldCloseConnection to decide what to do with the connection.
package block
