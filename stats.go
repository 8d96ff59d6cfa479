package ssdb

import (
	"sync/atomic"
)

// ClientStats contains statistics about client operations.
//
// For Prometheus integration, expose these as:
//   - Counters: Requests, Errors, Connects, Disconnects
//   - Counters: Gets, Sets, Deletes, Increments (with operation label)
//   - Counter: GetHits (derive hit rate as GetHits/Gets)
type ClientStats struct {
	Requests    uint64 // Request/response cycles started
	Errors      uint64 // Total errors across all operations
	Connects    uint64 // Successful Connect calls
	Disconnects uint64 // Connections dropped after a framing or transport error
	Gets        uint64 // Total Get operations
	GetHits     uint64 // Get operations that found the key
	Sets        uint64 // Total Set, SetX and SetNX operations
	Deletes     uint64 // Total Del operations
	Increments  uint64 // Total Incr operations
}

// clientStatsCollector provides internal methods for updating client stats.
// Not exported - client updates its own stats.
type clientStatsCollector struct {
	stats *ClientStats
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{
		stats: &ClientStats{},
	}
}

func (c *clientStatsCollector) recordRequest() {
	atomic.AddUint64(&c.stats.Requests, 1)
}

func (c *clientStatsCollector) recordError() {
	atomic.AddUint64(&c.stats.Errors, 1)
}

func (c *clientStatsCollector) recordConnect() {
	atomic.AddUint64(&c.stats.Connects, 1)
}

func (c *clientStatsCollector) recordDisconnect() {
	atomic.AddUint64(&c.stats.Disconnects, 1)
}

func (c *clientStatsCollector) recordGet(found bool) {
	atomic.AddUint64(&c.stats.Gets, 1)
	if found {
		atomic.AddUint64(&c.stats.GetHits, 1)
	}
}

func (c *clientStatsCollector) recordSet() {
	atomic.AddUint64(&c.stats.Sets, 1)
}

func (c *clientStatsCollector) recordDelete() {
	atomic.AddUint64(&c.stats.Deletes, 1)
}

func (c *clientStatsCollector) recordIncrement() {
	atomic.AddUint64(&c.stats.Increments, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Requests:    atomic.LoadUint64(&c.stats.Requests),
		Errors:      atomic.LoadUint64(&c.stats.Errors),
		Connects:    atomic.LoadUint64(&c.stats.Connects),
		Disconnects: atomic.LoadUint64(&c.stats.Disconnects),
		Gets:        atomic.LoadUint64(&c.stats.Gets),
		GetHits:     atomic.LoadUint64(&c.stats.GetHits),
		Sets:        atomic.LoadUint64(&c.stats.Sets),
		Deletes:     atomic.LoadUint64(&c.stats.Deletes),
		Increments:  atomic.LoadUint64(&c.stats.Increments),
	}
}
