package ssdb

import (
	"context"
	"strconv"
	"time"

	"github.com/pior/ssdb/block"
)

// Item is a value read from the server.
type Item struct {
	Key   string
	Value []byte
	Found bool // indicates whether the key was found
}

// Querier is the key/value subset of the commands.
type Querier interface {
	Get(ctx context.Context, key string) (Item, error)
	Set(ctx context.Context, key, value string) (int64, error)
	SetX(ctx context.Context, key, value string, ttl time.Duration) (int64, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string, delta int64) (int64, error)
}

// Executor runs one request/response cycle and returns the response blocks.
type Executor interface {
	Execute(ctx context.Context, req *block.Request) ([]string, error)
}

// Commands provides typed SSDB commands on top of an Executor.
// Client embeds it; it can also be used with a custom Executor.
//
// Every command checks the response status: anything other than "ok" is
// returned as a *RequestError. Use IsNotFound to detect a missing key on
// commands that do not return an Item.
type Commands struct {
	executor Executor
	stats    *clientStatsCollector
}

var _ Querier = (*Commands)(nil)

// NewCommands creates a new Commands instance using the given executor.
func NewCommands(executor Executor) *Commands {
	return &Commands{
		executor: executor,
		stats:    newClientStatsCollector(),
	}
}

// exec sends a command and checks the status of the response.
func (c *Commands) exec(ctx context.Context, cmd string, params ...string) ([]string, error) {
	resp, err := c.executor.Execute(ctx, block.NewRequest(cmd, params...))
	if err != nil {
		return nil, err
	}
	if err := checkStatus(cmd, resp); err != nil {
		c.stats.recordError()
		return nil, err
	}
	return resp, nil
}

// integer runs a command with a KindInteger result.
// A response made of a single numeric block is a bare count.
func (c *Commands) integer(ctx context.Context, cmd string, params ...string) (int64, error) {
	resp, err := c.executor.Execute(ctx, block.NewRequest(cmd, params...))
	if err != nil {
		return 0, err
	}

	if len(resp) == 1 {
		if n, err := strconv.ParseInt(resp[0], 10, 64); err == nil {
			return n, nil
		}
	}

	if err := checkStatus(cmd, resp); err != nil {
		c.stats.recordError()
		return 0, err
	}

	result, err := ParseResult(cmd, resp)
	if err != nil {
		c.stats.recordError()
		return 0, err
	}
	return result.Int, nil
}

// item runs a command with a KindPayload result. A not_found status is a miss.
func (c *Commands) item(ctx context.Context, key, cmd string, params ...string) (Item, error) {
	resp, err := c.executor.Execute(ctx, block.NewRequest(cmd, params...))
	if err != nil {
		return Item{}, err
	}

	if len(resp) > 0 && resp[0] == StatusNotFound {
		return Item{Key: key, Found: false}, nil
	}

	if err := checkStatus(cmd, resp); err != nil {
		c.stats.recordError()
		return Item{}, err
	}

	result, err := ParseResult(cmd, resp)
	if err != nil {
		c.stats.recordError()
		return Item{}, err
	}
	return Item{Key: key, Value: result.Data, Found: true}, nil
}

// Ping checks that the server answers with the ok status.
func (c *Commands) Ping(ctx context.Context) error {
	_, err := c.exec(ctx, "ping")
	return err
}

// Get retrieves the value of a key.
func (c *Commands) Get(ctx context.Context, key string) (Item, error) {
	item, err := c.item(ctx, key, "get", key)
	if err != nil {
		return Item{}, err
	}
	c.stats.recordGet(item.Found)
	return item, nil
}

// Set stores a value. It returns the count reported by the server.
func (c *Commands) Set(ctx context.Context, key, value string) (int64, error) {
	n, err := c.integer(ctx, "set", key, value)
	if err != nil {
		return 0, err
	}
	c.stats.recordSet()
	return n, nil
}

// SetX stores a value that expires after ttl, rounded down to the second.
// A positive ttl under one second is sent as one second.
func (c *Commands) SetX(ctx context.Context, key, value string, ttl time.Duration) (int64, error) {
	n, err := c.integer(ctx, "setx", key, value, formatSeconds(ttl))
	if err != nil {
		return 0, err
	}
	c.stats.recordSet()
	return n, nil
}

// SetNX stores a value only if the key does not exist.
// It returns true if the value was stored.
func (c *Commands) SetNX(ctx context.Context, key, value string) (bool, error) {
	n, err := c.integer(ctx, "setnx", key, value)
	if err != nil {
		return false, err
	}
	c.stats.recordSet()
	return n == 1, nil
}

// GetSet stores a value and returns the previous one.
func (c *Commands) GetSet(ctx context.Context, key, value string) (Item, error) {
	return c.item(ctx, key, "getset", key, value)
}

// Del removes a key. Deleting a missing key is not an error.
func (c *Commands) Del(ctx context.Context, key string) error {
	if _, err := c.exec(ctx, "del", key); err != nil {
		return err
	}
	c.stats.recordDelete()
	return nil
}

// Exists reports whether a key exists.
func (c *Commands) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.integer(ctx, "exists", key)
	return n == 1, err
}

// Incr adds delta to the integer value of a key and returns the new value.
// A missing key counts as 0.
func (c *Commands) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := c.integer(ctx, "incr", key, strconv.FormatInt(delta, 10))
	if err != nil {
		return 0, err
	}
	c.stats.recordIncrement()
	return n, nil
}

// StrLen returns the length of the value of a key.
func (c *Commands) StrLen(ctx context.Context, key string) (int64, error) {
	return c.integer(ctx, "strlen", key)
}

// Hashes

// HSet sets a field of a hash. It returns 1 if the field was created.
func (c *Commands) HSet(ctx context.Context, name, key, value string) (int64, error) {
	return c.integer(ctx, "hset", name, key, value)
}

// HGet retrieves a field of a hash.
func (c *Commands) HGet(ctx context.Context, name, key string) (Item, error) {
	return c.item(ctx, key, "hget", name, key)
}

// HDel removes a field of a hash.
func (c *Commands) HDel(ctx context.Context, name, key string) (int64, error) {
	return c.integer(ctx, "hdel", name, key)
}

// HSize returns the number of fields in a hash.
func (c *Commands) HSize(ctx context.Context, name string) (int64, error) {
	return c.integer(ctx, "hsize", name)
}

// HClear removes a hash and returns the number of fields it held.
func (c *Commands) HClear(ctx context.Context, name string) (int64, error) {
	return c.integer(ctx, "hclear", name)
}

// Sorted sets

// ZSet sets the score of a sorted set member.
func (c *Commands) ZSet(ctx context.Context, name, key string, score int64) (int64, error) {
	return c.integer(ctx, "zset", name, key, strconv.FormatInt(score, 10))
}

// ZGet returns the score of a member. A missing member is a not_found RequestError.
func (c *Commands) ZGet(ctx context.Context, name, key string) (int64, error) {
	return c.integer(ctx, "zget", name, key)
}

// ZDel removes a member from a sorted set.
func (c *Commands) ZDel(ctx context.Context, name, key string) (int64, error) {
	return c.integer(ctx, "zdel", name, key)
}

// ZSize returns the number of members in a sorted set.
func (c *Commands) ZSize(ctx context.Context, name string) (int64, error) {
	return c.integer(ctx, "zsize", name)
}

// ZIncr adds by to the score of a member and returns the new score.
func (c *Commands) ZIncr(ctx context.Context, name, key string, by int64) (int64, error) {
	return c.integer(ctx, "zincr", name, key, strconv.FormatInt(by, 10))
}

// Queues

// QPushBack appends items to a queue and returns its new size.
func (c *Commands) QPushBack(ctx context.Context, name string, items ...string) (int64, error) {
	return c.integer(ctx, "qpush_back", append([]string{name}, items...)...)
}

// QPushFront prepends items to a queue and returns its new size.
func (c *Commands) QPushFront(ctx context.Context, name string, items ...string) (int64, error) {
	return c.integer(ctx, "qpush_front", append([]string{name}, items...)...)
}

// QPopFront removes and returns the first item of a queue.
func (c *Commands) QPopFront(ctx context.Context, name string) (Item, error) {
	return c.item(ctx, name, "qpop_front", name)
}

// QPopBack removes and returns the last item of a queue.
func (c *Commands) QPopBack(ctx context.Context, name string) (Item, error) {
	return c.item(ctx, name, "qpop_back", name)
}

// QSize returns the number of items in a queue.
func (c *Commands) QSize(ctx context.Context, name string) (int64, error) {
	return c.integer(ctx, "qsize", name)
}

// formatSeconds truncates to the second. A positive ttl under one second is 1.
func formatSeconds(d time.Duration) string {
	if d > 0 && d < time.Second {
		return "1"
	}
	return strconv.FormatInt(int64(d/time.Second), 10)
}
