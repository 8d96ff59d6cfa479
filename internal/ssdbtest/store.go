package ssdbtest

import (
	"sync"

	"github.com/zeebo/xxh3"
)

const shardCount = 16

// store is an in-memory keyspace split in shards by xxh3 hash of the key
// (or of the hash/zset/queue name), so parallel clients rarely contend.
type store struct {
	shards [shardCount]*shard
}

type shard struct {
	mu     sync.Mutex
	kv     map[string]string
	hashes map[string]map[string]string
	zsets  map[string]map[string]int64
	queues map[string][]string
}

func newStore() *store {
	s := &store{}
	for i := range s.shards {
		s.shards[i] = &shard{
			kv:     make(map[string]string),
			hashes: make(map[string]map[string]string),
			zsets:  make(map[string]map[string]int64),
			queues: make(map[string][]string),
		}
	}
	return s
}

// with runs fn with the shard owning name locked.
func (s *store) with(name string, fn func(sh *shard)) {
	sh := s.shards[xxh3.HashString(name)%shardCount]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fn(sh)
}
