package counter

import (
	"sync"

	"blainsmith.com/go/seahash"
)

// numOverflowShards stripes the overflow log across this many
// independently-locked partitions, matching the sharded mutex map in
// encoding/bamprovider/concurrentmap.go. Overflow is the exception path
// (it should be rare), but under a pathological input every consumer
// worker could be appending at once, so a single global mutex would
// serialize them needlessly.
const numOverflowShards = 64

// overflowShard is one lock-protected partition of the log.
type overflowShard struct {
	mu      sync.Mutex
	entries []string
}

// Overflow is the process-wide append-only log of k-mers a shard refused
// because its quadratic probe sequence exceeded MaxProbeSteps. It is
// written by every consumer worker and read exactly once, by the
// aggregator, after every worker has terminated. Seahash, deliberately
// distinct from the farm hash that seeds each shard's probe sequence,
// decides which partition an append lands in, so overflow-log
// contention does not correlate with probe-sequence hot spots.
type Overflow struct {
	shards [numOverflowShards]overflowShard
}

// NewOverflow returns an empty overflow log.
func NewOverflow() *Overflow {
	return &Overflow{}
}

// Append records one overflowed k-mer.
func (o *Overflow) Append(kmer []byte) {
	s := &o.shards[seahash.Sum64(kmer)%numOverflowShards]
	s.mu.Lock()
	s.entries = append(s.entries, string(kmer))
	s.mu.Unlock()
}

// Len returns the number of overflowed k-mer occurrences recorded so far.
// Safe to call concurrently with Append.
func (o *Overflow) Len() int {
	n := 0
	for i := range o.shards {
		s := &o.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Tally drains the log into a kmer -> occurrence-count map, counting
// duplicate entries. It is meant to be called once, during aggregation.
func (o *Overflow) Tally() map[string]int64 {
	out := make(map[string]int64)
	for i := range o.shards {
		s := &o.shards[i]
		s.mu.Lock()
		entries := s.entries
		s.entries = nil
		s.mu.Unlock()
		for _, kmer := range entries {
			out[kmer]++
		}
	}
	return out
}
