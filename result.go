package ssdb

import (
	"strconv"
)

// Status codes returned by the server as the first block of a response.
const (
	StatusOK          = "ok"
	StatusNotFound    = "not_found"
	StatusError       = "error"
	StatusFail        = "fail"
	StatusClientError = "client_error"
)

// ResultKind is the shape of a typed result.
type ResultKind uint8

const (
	// KindEmpty is used for commands without a typed result.
	KindEmpty ResultKind = iota
	// KindInteger is used for commands that report counts, sizes or numeric values.
	KindInteger
	// KindPayload is used for commands that return stored data.
	KindPayload
)

func (k ResultKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindInteger:
		return "integer"
	case KindPayload:
		return "payload"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Result is a response frame typed according to the command that produced it.
type Result struct {
	Kind   ResultKind
	Status string // First block of the response, "" for an empty response
	Int    int64  // Set for KindInteger
	Data   []byte // Set for KindPayload
}

// OK returns true if the server reported success.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// commandKinds maps command names to the shape of their result.
// Commands missing from the table produce KindEmpty.
var commandKinds = map[string]ResultKind{
	// Key/value
	"get":      KindPayload,
	"getset":   KindPayload,
	"set":      KindInteger,
	"setx":     KindInteger,
	"setnx":    KindInteger,
	"del":      KindInteger,
	"incr":     KindInteger,
	"decr":     KindInteger,
	"exists":   KindInteger,
	"strlen":   KindInteger,
	"getbit":   KindInteger,
	"setbit":   KindInteger,
	"countbit": KindInteger,

	// Hashes
	"hget":    KindPayload,
	"hset":    KindInteger,
	"hdel":    KindInteger,
	"hincr":   KindInteger,
	"hdecr":   KindInteger,
	"hsize":   KindInteger,
	"hclear":  KindInteger,
	"hexists": KindInteger,

	// Sorted sets
	"zset":             KindInteger,
	"zget":             KindInteger,
	"zdel":             KindInteger,
	"zincr":            KindInteger,
	"zdecr":            KindInteger,
	"zsize":            KindInteger,
	"zclear":           KindInteger,
	"zexists":          KindInteger,
	"zrank":            KindInteger,
	"zrrank":           KindInteger,
	"zcount":           KindInteger,
	"zsum":             KindInteger,
	"zremrangebyrank":  KindInteger,
	"zremrangebyscore": KindInteger,

	// Queues
	"qpush":       KindInteger,
	"qpush_front": KindInteger,
	"qpush_back":  KindInteger,
	"qsize":       KindInteger,
	"qclear":      KindInteger,
	"qfront":      KindPayload,
	"qback":       KindPayload,
	"qget":        KindPayload,
	"qpop":        KindPayload,
	"qpop_front":  KindPayload,
	"qpop_back":   KindPayload,

	// Batch writes
	"multi_set":  KindInteger,
	"multi_del":  KindInteger,
	"multi_hset": KindInteger,
	"multi_hdel": KindInteger,
	"multi_zset": KindInteger,
	"multi_zdel": KindInteger,
}

// KindOf returns the result shape of a command.
func KindOf(cmd string) ResultKind {
	return commandKinds[cmd]
}

// ParseResult types a raw response frame according to the command that was sent.
//
// The first block is the status. For commands with a value, the second block is
// the value: parsed as a base-10 int64 for KindInteger, kept as bytes for
// KindPayload. An Integer response made of a single block is read as a bare count.
//
// ParseResult never inspects the status: a non-"ok" status with a value block
// is returned as is, use Result.OK to check it. A frame too short for the
// command, or a value that is not an integer, is a RequestError.
func ParseResult(cmd string, resp []string) (Result, error) {
	kind := KindOf(cmd)

	if kind == KindEmpty {
		r := Result{Kind: KindEmpty}
		if len(resp) > 0 {
			r.Status = resp[0]
		}
		return r, nil
	}

	if len(resp) == 0 {
		return Result{}, &RequestError{Command: cmd, Message: "empty response"}
	}

	status := resp[0]

	switch kind {
	case KindInteger:
		raw := status
		if len(resp) > 1 {
			raw = resp[1]
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Result{}, &RequestError{Command: cmd, Status: status, Message: "invalid integer value", Err: err}
		}
		return Result{Kind: KindInteger, Status: status, Int: value}, nil

	default:
		if len(resp) < 2 {
			return Result{}, &RequestError{Command: cmd, Status: status, Message: "response has no value"}
		}
		return Result{Kind: KindPayload, Status: status, Data: []byte(resp[1])}, nil
	}
}

// checkStatus returns a RequestError unless the first block is "ok".
func checkStatus(cmd string, resp []string) error {
	if len(resp) == 0 {
		return &RequestError{Command: cmd, Message: "empty response"}
	}
	if resp[0] == StatusOK {
		return nil
	}

	err := &RequestError{Command: cmd, Status: resp[0]}
	if len(resp) > 1 {
		err.Message = resp[1]
	}
	return err
}
