// Package ssdbtest provides an in-process SSDB server speaking the block
// protocol, for tests that need a real TCP peer.
//
// It implements the key/value, hash, sorted set and queue commands used by the
// client, without persistence or expiration.
package ssdbtest

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pior/ssdb/block"
)

// Server is a fake SSDB server listening on a random local port.
type Server struct {
	listener net.Listener
	store    *store
	requests atomic.Int64

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer starts a server. It is closed when the test ends.
func NewServer(tb testing.TB) *Server {
	tb.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("Failed to start test server: %v", err)
	}

	s := &Server{
		listener: listener,
		store:    newStore(),
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.serve()

	tb.Cleanup(s.Close)
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the host the server listens on.
func (s *Server) Host() string {
	return s.listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Requests returns the number of request frames handled.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// CloseConnections drops every open client connection, leaving the listener up.
func (s *Server) CloseConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// Close stops the listener and drops every open connection.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.listener.Close()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		frame, err := block.ReadFrame(r)
		if err != nil {
			return
		}
		if len(frame) == 0 {
			continue
		}
		s.requests.Add(1)

		args := make([]string, len(frame)-1)
		for i, b := range frame[1:] {
			args[i] = string(b)
		}

		for _, b := range s.dispatch(string(frame[0]), args) {
			block.WriteBlock(w, []byte(b))
		}
		block.WriteFrameEnd(w)
		if err := w.Flush(); err != nil {
			return
		}
	}
}

var errNotInteger = errors.New("value is not an integer or out of range")

func ok(values ...string) []string {
	return append([]string{"ok"}, values...)
}

func okInt(n int64) []string {
	return ok(strconv.FormatInt(n, 10))
}

func okBool(b bool) []string {
	if b {
		return okInt(1)
	}
	return okInt(0)
}

func notFound() []string {
	return []string{"not_found"}
}

func failure(status string, err error) []string {
	return []string{status, err.Error()}
}

// arity is the minimum number of arguments per command.
var arity = map[string]int{
	"ping": 0, "get": 1, "set": 2, "setx": 3, "setnx": 2, "getset": 2, "del": 1,
	"exists": 1, "incr": 1, "strlen": 1,
	"hset": 3, "hget": 2, "hdel": 2, "hsize": 1, "hclear": 1,
	"zset": 3, "zget": 2, "zdel": 2, "zsize": 1, "zincr": 2,
	"qpush": 2, "qpush_back": 2, "qpush_front": 2,
	"qpop": 1, "qpop_front": 1, "qpop_back": 1, "qsize": 1,
}

func (s *Server) dispatch(cmd string, args []string) []string {
	minArgs, known := arity[cmd]
	if !known {
		return failure("client_error", errors.New("Unknown Command: "+cmd))
	}
	if len(args) < minArgs {
		return failure("client_error", errors.New("wrong number of arguments"))
	}

	var resp []string
	switch cmd {
	case "ping":
		resp = ok()
	case "get", "set", "setx", "setnx", "getset", "del", "exists", "incr", "strlen":
		s.store.with(args[0], func(sh *shard) { resp = sh.keyValue(cmd, args) })
	case "hset", "hget", "hdel", "hsize", "hclear":
		s.store.with(args[0], func(sh *shard) { resp = sh.hash(cmd, args) })
	case "zset", "zget", "zdel", "zsize", "zincr":
		s.store.with(args[0], func(sh *shard) { resp = sh.zset(cmd, args) })
	default:
		s.store.with(args[0], func(sh *shard) { resp = sh.queue(cmd, args) })
	}
	return resp
}

func (sh *shard) keyValue(cmd string, args []string) []string {
	key := args[0]
	switch cmd {
	case "get":
		if v, found := sh.kv[key]; found {
			return ok(v)
		}
		return notFound()
	case "set", "setx":
		sh.kv[key] = args[1]
		return okInt(1)
	case "setnx":
		if _, found := sh.kv[key]; found {
			return okInt(0)
		}
		sh.kv[key] = args[1]
		return okInt(1)
	case "getset":
		old, found := sh.kv[key]
		sh.kv[key] = args[1]
		if !found {
			return notFound()
		}
		return ok(old)
	case "del":
		delete(sh.kv, key)
		return okInt(1)
	case "exists":
		_, found := sh.kv[key]
		return okBool(found)
	case "incr":
		delta := int64(1)
		if len(args) > 1 {
			d, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return failure("error", errNotInteger)
			}
			delta = d
		}
		current := int64(0)
		if v, found := sh.kv[key]; found {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return failure("error", errNotInteger)
			}
			current = n
		}
		current += delta
		sh.kv[key] = strconv.FormatInt(current, 10)
		return okInt(current)
	default: // strlen
		return okInt(int64(len(sh.kv[key])))
	}
}

func (sh *shard) hash(cmd string, args []string) []string {
	name := args[0]
	h := sh.hashes[name]
	switch cmd {
	case "hset":
		if h == nil {
			h = make(map[string]string)
			sh.hashes[name] = h
		}
		_, existed := h[args[1]]
		h[args[1]] = args[2]
		return okBool(!existed)
	case "hget":
		if v, found := h[args[1]]; found {
			return ok(v)
		}
		return notFound()
	case "hdel":
		_, found := h[args[1]]
		delete(h, args[1])
		return okBool(found)
	case "hsize":
		return okInt(int64(len(h)))
	default: // hclear
		delete(sh.hashes, name)
		return okInt(int64(len(h)))
	}
}

func (sh *shard) zset(cmd string, args []string) []string {
	name := args[0]
	z := sh.zsets[name]
	switch cmd {
	case "zset", "zincr":
		by := int64(1)
		if len(args) > 2 {
			n, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return failure("error", errNotInteger)
			}
			by = n
		}
		if z == nil {
			z = make(map[string]int64)
			sh.zsets[name] = z
		}
		score, existed := z[args[1]]
		if cmd == "zset" {
			z[args[1]] = by
			return okBool(!existed)
		}
		z[args[1]] = score + by
		return okInt(score + by)
	case "zget":
		if score, found := z[args[1]]; found {
			return okInt(score)
		}
		return notFound()
	case "zdel":
		_, found := z[args[1]]
		delete(z, args[1])
		return okBool(found)
	default: // zsize
		return okInt(int64(len(z)))
	}
}

func (sh *shard) queue(cmd string, args []string) []string {
	name := args[0]
	q := sh.queues[name]
	switch cmd {
	case "qpush", "qpush_back":
		q = append(q, args[1:]...)
	case "qpush_front":
		items := make([]string, 0, len(q)+len(args)-1)
		for i := len(args) - 1; i >= 1; i-- {
			items = append(items, args[i])
		}
		q = append(items, q...)
	case "qpop", "qpop_front", "qpop_back":
		if len(q) == 0 {
			return notFound()
		}
		var item string
		if cmd == "qpop_back" {
			item, q = q[len(q)-1], q[:len(q)-1]
		} else {
			item, q = q[0], q[1:]
		}
		sh.queues[name] = q
		return ok(item)
	default: // qsize
		return okInt(int64(len(q)))
	}
	sh.queues[name] = q
	return okInt(int64(len(q)))
}
