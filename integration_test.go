package ssdb_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/ssdb"
	"github.com/pior/ssdb/block"
	"github.com/pior/ssdb/internal/ssdbtest"
)

func connectedClient(t *testing.T, server *ssdbtest.Server, config ssdb.Config) *ssdb.Client {
	t.Helper()
	client := ssdb.NewClient(server.Host(), server.Port(), config)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_SetGet(t *testing.T) {
	server := ssdbtest.NewServer(t)
	client := connectedClient(t, server, ssdb.Config{})
	ctx := context.Background()

	n, err := client.Set(ctx, "测试", "foo")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	item, err := client.Get(ctx, "测试")
	require.NoError(t, err)
	assert.True(t, item.Found)
	assert.Equal(t, "foo", string(item.Value))

	stats := client.Stats()
	assert.Equal(t, uint64(2), stats.Requests)
	assert.Equal(t, uint64(1), stats.Sets)
	assert.Equal(t, uint64(1), stats.GetHits)
}

func TestIntegration_ValuesWithNewlines(t *testing.T) {
	server := ssdbtest.NewServer(t)
	client := connectedClient(t, server, ssdb.Config{})
	ctx := context.Background()

	values := []string{"", "line1\nline2", "\r\n", "\n\n\n", "tab\tand space ", strings.Repeat("x", 100000)}
	for i, v := range values {
		key := fmt.Sprintf("key:%d", i)
		_, err := client.Set(ctx, key, v)
		require.NoError(t, err)

		item, err := client.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, item.Found)
		assert.Equal(t, v, string(item.Value))
	}
}

func TestIntegration_GetMissing(t *testing.T) {
	server := ssdbtest.NewServer(t)
	client := connectedClient(t, server, ssdb.Config{})

	item, err := client.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, item.Found)
	assert.Nil(t, item.Value)
}

func TestIntegration_KeyValueCommands(t *testing.T) {
	server := ssdbtest.NewServer(t)
	client := connectedClient(t, server, ssdb.Config{})
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	stored, err := client.SetNX(ctx, "k", "v1")
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = client.SetNX(ctx, "k", "v2")
	require.NoError(t, err)
	assert.False(t, stored)

	old, err := client.GetSet(ctx, "k", "v3")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(old.Value))

	length, err := client.StrLen(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)

	exists, err := client.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, client.Del(ctx, "k"))

	exists, err = client.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = client.SetX(ctx, "session", "data", time.Minute)
	require.NoError(t, err)

	n, err := client.Incr(ctx, "counter", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = client.Incr(ctx, "counter", -2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = client.Incr(ctx, "session", 1)
	var re *ssdb.RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ssdb.StatusError, re.Status)

	// The connection survives a request error
	require.NoError(t, client.Ping(ctx))
}

func TestIntegration_HashCommands(t *testing.T) {
	server := ssdbtest.NewServer(t)
	client := connectedClient(t, server, ssdb.Config{})
	ctx := context.Background()

	added, err := client.HSet(ctx, "user:1", "name", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), added)

	_, err = client.HSet(ctx, "user:1", "city", "paris")
	require.NoError(t, err)

	item, err := client.HGet(ctx, "user:1", "name")
	require.NoError(t, err)
	assert.Equal(t, "alice", string(item.Value))

	size, err := client.HSize(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)

	removed, err := client.HDel(ctx, "user:1", "city")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	cleared, err := client.HClear(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	item, err = client.HGet(ctx, "user:1", "name")
	require.NoError(t, err)
	assert.False(t, item.Found)
}

func TestIntegration_SortedSetCommands(t *testing.T) {
	server := ssdbtest.NewServer(t)
	client := connectedClient(t, server, ssdb.Config{})
	ctx := context.Background()

	_, err := client.ZSet(ctx, "scores", "bob", 10)
	require.NoError(t, err)

	score, err := client.ZIncr(ctx, "scores", "bob", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(15), score)

	score, err = client.ZGet(ctx, "scores", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(15), score)

	size, err := client.ZSize(ctx, "scores")
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	_, err = client.ZDel(ctx, "scores", "bob")
	require.NoError(t, err)

	_, err = client.ZGet(ctx, "scores", "bob")
	assert.True(t, ssdb.IsNotFound(err))
}

func TestIntegration_QueueCommands(t *testing.T) {
	server := ssdbtest.NewServer(t)
	client := connectedClient(t, server, ssdb.Config{})
	ctx := context.Background()

	size, err := client.QPushBack(ctx, "jobs", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)

	size, err = client.QPushFront(ctx, "jobs", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)

	item, err := client.QPopFront(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, "a", string(item.Value))

	item, err = client.QPopBack(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, "c", string(item.Value))

	size, err = client.QSize(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	_, err = client.QPopFront(ctx, "jobs")
	require.NoError(t, err)

	item, err = client.QPopFront(ctx, "jobs")
	require.NoError(t, err)
	assert.False(t, item.Found)
}

func TestIntegration_UnknownCommand(t *testing.T) {
	server := ssdbtest.NewServer(t)
	client := connectedClient(t, server, ssdb.Config{})

	result, err := client.Do(context.Background(), "flushall")
	require.NoError(t, err)
	assert.Equal(t, ssdb.KindEmpty, result.Kind)
	assert.Equal(t, ssdb.StatusClientError, result.Status)
	assert.False(t, result.OK())
}

func TestIntegration_ConcurrentClients(t *testing.T) {
	server := ssdbtest.NewServer(t)
	const clients = 2
	const iterations = 200

	var wg sync.WaitGroup
	errs := make(chan error, clients)

	for c := range clients {
		client := connectedClient(t, server, ssdb.Config{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()

			for i := range iterations {
				key := fmt.Sprintf("client%d:key%d", c, i)
				value := fmt.Sprintf("value-%d-%d", c, i)

				if _, err := client.Set(ctx, key, value); err != nil {
					errs <- err
					return
				}
				item, err := client.Get(ctx, key)
				if err != nil {
					errs <- err
					return
				}
				if string(item.Value) != value {
					errs <- fmt.Errorf("client %d got %q for %s, want %q", c, item.Value, key, value)
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	assert.Equal(t, int64(clients*iterations*2), server.Requests())
}

func TestIntegration_CloseTwice(t *testing.T) {
	server := ssdbtest.NewServer(t)
	client := connectedClient(t, server, ssdb.Config{})

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())
}

func TestIntegration_ServerDropsConnection(t *testing.T) {
	server := ssdbtest.NewServer(t)
	client := connectedClient(t, server, ssdb.Config{})
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	server.CloseConnections()

	// The stream closes mid-cycle: a framing or transport error, never a short result
	err := client.Ping(ctx)
	require.Error(t, err)
	assert.True(t, block.ShouldCloseConnection(err))
	assert.False(t, client.IsConnected())

	require.NoError(t, client.Connect(ctx))
	require.NoError(t, client.Ping(ctx))
	assert.Equal(t, uint64(2), client.Stats().Connects)
}

func TestIntegration_ContextTimeout(t *testing.T) {
	server := ssdbtest.NewServer(t)
	client := connectedClient(t, server, ssdb.Config{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.Set(ctx, "k", "v")
	require.NoError(t, err)
}
