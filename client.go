package ssdb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/pior/ssdb/block"
)

// Config holds configuration for a client.
// The zero value is ready to use.
type Config struct {
	// Dialer is the net.Dialer used to open the connection.
	// If nil, a net.Dialer with DialTimeout is used.
	Dialer *net.Dialer

	// DialTimeout bounds connection establishment when Dialer is nil.
	// Zero means no timeout other than the context passed to Connect.
	DialTimeout time.Duration

	// ReadBufferSize and WriteBufferSize size the connection buffers.
	// Zero means 4096 bytes.
	ReadBufferSize  int
	WriteBufferSize int

	// Logger receives connection lifecycle events.
	// If nil, logging is disabled.
	Logger *zap.Logger

	// NewCircuitBreaker creates the circuit breaker guarding the server.
	// Called once, with the server address, when the client is created.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker

	// for testing purposes only
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// Client is an SSDB client owning at most one connection.
//
// The connection is opened explicitly with Connect and released with Close.
// Requests are sent one at a time: a request frame is fully written and
// flushed before its response frame is read. Concurrent calls on the same
// Client are serialized. Use one Client per goroutine for parallelism.
type Client struct {
	*Commands

	addr    string
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
	config  Config
	logger  *zap.Logger
	breaker CircuitBreaker // nil if not configured

	mu   sync.Mutex
	conn *Connection // nil when not connected

	stats *clientStatsCollector
}

var _ Executor = (*Client)(nil)

// NewClient creates a client for the server at host:port.
// No connection is made until Connect is called.
func NewClient(host string, port int, config Config) *Client {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dial := config.dial
	if dial == nil {
		dialer := config.Dialer
		if dialer == nil {
			dialer = &net.Dialer{Timeout: config.DialTimeout}
		}
		dial = dialer.DialContext
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		addr:   addr,
		dial:   dial,
		config: config,
		logger: logger.With(zap.String("addr", addr)),
		stats:  newClientStatsCollector(),
	}

	if config.NewCircuitBreaker != nil {
		c.breaker = config.NewCircuitBreaker(addr)
	}

	c.Commands = &Commands{executor: c, stats: c.stats}
	return c
}

// Addr returns the server address.
func (c *Client) Addr() string {
	return c.addr
}

// Connect opens the connection to the server.
//
// A dial failure is returned as a *block.ConnectionError and leaves the client
// unconnected. Calling Connect on a connected client returns ErrAlreadyConnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return ErrAlreadyConnected
	}

	netConn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		c.stats.recordError()
		c.logger.Debug("connect failed", zap.Error(err))
		return &block.ConnectionError{Op: "dial", Err: err}
	}

	c.conn = newConnectionSize(netConn, c.config.ReadBufferSize, c.config.WriteBufferSize)
	c.stats.recordConnect()
	c.logger.Debug("connected")
	return nil
}

// IsConnected returns true if the client holds an open connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close flushes pending writes and releases the connection.
// Closing an unconnected client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.logger.Debug("closed")

	if err != nil {
		return &block.ConnectionError{Op: "close", Err: err}
	}
	return nil
}

// SendRequest sends a command with its parameters and returns the response blocks.
//
// Response blocks must be valid UTF-8, otherwise a *block.FramingError with
// Step "decode" is returned. The response status is not interpreted.
//
// Errors for which block.ShouldCloseConnection is true (framing and transport
// errors) close the connection: the client is then unconnected and Connect
// may be called again.
func (c *Client) SendRequest(ctx context.Context, cmd string, params ...string) ([]string, error) {
	return c.Execute(ctx, block.NewRequest(cmd, params...))
}

// Do sends a command and types the response with ParseResult.
func (c *Client) Do(ctx context.Context, cmd string, params ...string) (Result, error) {
	resp, err := c.SendRequest(ctx, cmd, params...)
	if err != nil {
		return Result{}, err
	}
	return ParseResult(cmd, resp)
}

// Execute runs a single request/response cycle. It implements Executor.
func (c *Client) Execute(ctx context.Context, req *block.Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		c.stats.recordError()
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.stats.recordError()
		return nil, &block.ConnectionError{Op: "send", Err: ErrNotConnected}
	}

	c.stats.recordRequest()

	var resp []string
	var err error
	if c.breaker != nil {
		resp, err = c.breaker.Execute(func() ([]string, error) {
			return c.roundTrip(ctx, req)
		})
	} else {
		resp, err = c.roundTrip(ctx, req)
	}

	if err != nil {
		c.stats.recordError()
		return nil, err
	}
	return resp, nil
}

// roundTrip sends the request on the current connection and decodes the response.
// Must be called with c.mu held and c.conn set.
func (c *Client) roundTrip(ctx context.Context, req *block.Request) ([]string, error) {
	blocks, err := c.conn.Send(ctx, req)
	if err == nil {
		var resp []string
		resp, err = decodeFrame(blocks)
		if err == nil {
			return resp, nil
		}
	}

	var state block.ErrorWithConnectionState
	if errors.As(err, &state) && state.ShouldCloseConnection() {
		c.teardown(req.Command, err)
	}
	return nil, err
}

// teardown drops a connection that can no longer be trusted.
// Must be called with c.mu held.
func (c *Client) teardown(cmd string, cause error) {
	c.conn.abort()
	c.conn = nil
	c.stats.recordDisconnect()
	c.logger.Warn("connection closed after error",
		zap.String("command", cmd),
		zap.Error(cause))
}

// decodeFrame converts response blocks to strings, rejecting invalid UTF-8.
func decodeFrame(blocks [][]byte) ([]string, error) {
	resp := make([]string, len(blocks))
	for i, b := range blocks {
		if !utf8.Valid(b) {
			return nil, &block.FramingError{
				Step:    block.StepDecode,
				Message: fmt.Sprintf("block %d is not valid UTF-8", i),
			}
		}
		resp[i] = string(b)
	}
	return resp, nil
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// CircuitBreakerState returns the state of the circuit breaker.
// Without a circuit breaker, the state is always closed.
func (c *Client) CircuitBreakerState() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}
