// Package counter implements the sharded open-addressing hash counter
// (component C4): one quadratic-probing count table per consumer worker,
// plus the process-wide overflow log that absorbs inserts a shard's probe
// bound couldn't place.
package counter

import (
	"reflect"
	"unsafe"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/log"
	"golang.org/x/sys/unix"
)

// mmapThreshold is the shard capacity at or above which the counts array is
// backed by an anonymous, hugepage-advised mapping instead of an ordinary
// Go slice, matching the large-table allocation trick in
// fusion/kmer_index.go. Below this size the allocator overhead of mmap
// isn't worth it.
const mmapThreshold = 16 << 20 // 16Mi slots

// InsertResult reports the outcome of a Shard.Insert call.
type InsertResult int

const (
	// Ok means the k-mer's count was created or incremented in place.
	Ok InsertResult = iota
	// OverflowReject means the probe sequence exceeded MaxProbeSteps
	// without finding an empty or matching slot; the caller is
	// responsible for routing the k-mer to the overflow log.
	OverflowReject
)

// Shard is one worker's private, fixed-capacity open-addressing count
// table. It is not safe for concurrent use: the pipeline's concurrency
// model guarantees a single owning goroutine during ingest, and the
// aggregator is the only reader once ingest ends.
type Shard struct {
	capacity      int
	maxProbeSteps int
	keys          []string
	counts        []int64
	size          int
}

// NewShard allocates a shard with room for `capacity` distinct k-mers and a
// quadratic probe bound of maxProbeSteps.
func NewShard(capacity, maxProbeSteps int) *Shard {
	var counts []int64
	if capacity >= mmapThreshold {
		counts = mmapInt64(capacity)
	} else {
		counts = make([]int64, capacity)
	}
	return &Shard{
		capacity:      capacity,
		maxProbeSteps: maxProbeSteps,
		keys:          make([]string, capacity),
		counts:        counts,
	}
}

// Size returns the number of distinct k-mers currently stored.
func (s *Shard) Size() int { return s.size }

// Capacity returns the shard's fixed slot count.
func (s *Shard) Capacity() int { return s.capacity }

// hashKmer computes H(kmer), the stable hash that seeds a shard's probe
// sequence.
func hashKmer(kmer []byte) uint64 {
	return farm.Hash64(kmer)
}

// Insert increments kmer's count, creating a fresh slot with count 1 if
// this is the first occurrence seen by this shard. It implements the
// bounded quadratic probe of the design: probe step i inspects slot
// (h0+i*i) mod capacity, for i in [0, maxProbeSteps]. If every probed slot
// is occupied by a different key, Insert returns OverflowReject without
// mutating the table.
func (s *Shard) Insert(kmer []byte) InsertResult {
	h0 := hashKmer(kmer)
	cap64 := uint64(s.capacity)
	for i := 0; i <= s.maxProbeSteps; i++ {
		slot := int((h0 + uint64(i*i)) % cap64)
		if s.counts[slot] == 0 {
			s.keys[slot] = string(kmer)
			s.counts[slot] = 1
			s.size++
			return Ok
		}
		if s.keys[slot] == string(kmer) {
			s.counts[slot]++
			return Ok
		}
	}
	return OverflowReject
}

// ForEach calls fn once per occupied slot, in table order.
func (s *Shard) ForEach(fn func(kmer string, count int64)) {
	for i, c := range s.counts {
		if c > 0 {
			fn(s.keys[i], c)
		}
	}
}

// mmapInt64 returns an n-element int64 slice backed by an anonymous,
// hugepage-advised memory mapping rather than the ordinary Go allocator,
// reducing TLB pressure under the hash table's random-access probing
// pattern. Adapted from fusion/kmer_index.go's initShard, but applied only
// to the counts array: counts are plain int64s, safe to place outside
// GC-scanned memory, unlike the keys array (Go string headers, which must
// stay on the GC heap).
func mmapInt64(n int) []int64 {
	raw, err := unix.Mmap(-1, 0, n*8, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		log.Panicf("counter: mmap %d bytes: %v", n*8, err)
	}
	if err := unix.Madvise(raw, unix.MADV_HUGEPAGE); err != nil {
		log.Printf("counter: madvise(MADV_HUGEPAGE) failed, continuing without it: %v", err)
	}
	var out []int64
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&out))
	hdr.Data = uintptr(unsafe.Pointer(&raw[0]))
	hdr.Len = n
	hdr.Cap = n
	return out
}
