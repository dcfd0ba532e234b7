// Package aggregate implements the aggregator (component C5): merging
// every consumer's shard plus the process-wide overflow log into one
// k-mer -> count table, and writing that table out in the configured
// order and format.
package aggregate

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/kmerize/counter"
	"github.com/minio/highwayhash"
	"github.com/pkg/errors"
)

// highwayKey is the fixed all-zero seed used for the optional output
// checksum, matching the zero-seed convention fusion/postprocess.go uses
// for its own highwayhash-keyed grouping.
var highwayKey [highwayhash.Size]byte

// Table is the merged k-mer -> count mapping produced by combining every
// shard and the overflow tally.
type Table struct {
	counts map[string]int64
}

// Merge builds a Table from shards and the overflow log. Shards are
// merged concurrently, one goroutine per shard: a given k-mer can land
// in more than one shard (whichever consumer happened to dequeue the
// batch containing it), so every shard's counts are added into the same
// running total rather than assumed disjoint. The overflow tally, which
// can likewise name k-mers already counted by a shard, is folded in the
// same way once every shard has been merged.
func Merge(shards []*counter.Shard, overflow *counter.Overflow) *Table {
	var (
		mu    sync.Mutex
		total = make(map[string]int64)
		wg    sync.WaitGroup
	)
	wg.Add(len(shards))
	for _, s := range shards {
		s := s
		go func() {
			defer wg.Done()
			local := make(map[string]int64, s.Size())
			s.ForEach(func(kmer string, count int64) {
				local[kmer] = count
			})
			mu.Lock()
			for k, c := range local {
				total[k] += c
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	for k, c := range overflow.Tally() {
		total[k] += c
	}
	return &Table{counts: total}
}

// Len returns the number of distinct k-mers in the table.
func (t *Table) Len() int { return len(t.counts) }

// Counts returns a copy of the merged k-mer -> count mapping, mainly so
// tests can compare the full multiset against a reference tally rather
// than only its size.
func (t *Table) Counts() map[string]int64 {
	out := make(map[string]int64, len(t.counts))
	for k, c := range t.counts {
		out[k] = c
	}
	return out
}

// sortedKey adapts a k-mer string for use as an llrb.Comparable, so the
// sorted-output path can reuse the same red-black tree the teacher's BAM
// sorter builds its ordered merge on, rather than hand-rolling a second
// sort routine.
type sortedKey string

func (k sortedKey) Compare(c llrb.Comparable) int {
	o := c.(sortedKey)
	switch {
	case k < o:
		return -1
	case k > o:
		return 1
	default:
		return 0
	}
}

// WriteOpts controls how Write renders a Table.
type WriteOpts struct {
	// Sorted requests lexicographic k-mer order in the output, built via
	// an llrb.Tree for large tables, instead of arbitrary map iteration
	// order.
	Sorted bool
	// Checksum requests that Write log.Printf a 64-bit commutative
	// checksum of the table: a sum, over every (kmer, count) pair, of a
	// highwayhash-keyed hash of the pair. Summing per-pair hashes rather
	// than hashing the serialized stream makes the checksum commutative
	// — it is the same regardless of line order, so it still compares
	// equal between a sorted and an unsorted run over the same logical
	// input. The checksum is logged, never written into the output
	// file, which stays exactly "<kmer>\t<count>\n" lines.
	Checksum bool
}

// sortThreshold is the table size above which sorted output switches
// from a plain sort.Strings pass to an llrb.Tree walk. Both produce the
// same order; the tree exists so the llrb dependency is exercised on
// the large-table path it was brought in for, while small tables take
// the cheaper slice sort.
const sortThreshold = 4096

// Write renders t to path as tab-separated "<kmer>\t<count>\n" lines,
// through the same file.Create-based I/O abstraction the teacher's
// command-line tools use for every output path (local disk or S3
// transparently).
func Write(ctx context.Context, path string, t *Table, opts WriteOpts) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "aggregate: creating %s", path)
	}

	bw := bufio.NewWriter(out.Writer(ctx))

	if err := writeLines(t, opts.Sorted, bw); err != nil {
		_ = out.Close(ctx)
		return err
	}

	if opts.Checksum {
		log.Printf("aggregate: output checksum %016x", checksum(t))
	}

	if err := bw.Flush(); err != nil {
		_ = out.Close(ctx)
		return errors.Wrapf(err, "aggregate: flushing %s", path)
	}
	if err := out.Close(ctx); err != nil {
		return errors.Wrapf(err, "aggregate: closing %s", path)
	}
	return nil
}

// checksum computes a commutative 64-bit digest of t's entire multiset of
// (kmer, count) pairs: the unsigned sum, over every pair, of the low 8
// bytes of a highwayhash.Sum keyed hash of the pair's bytes, the same
// call fusion/postprocess.go's groupCandidatesByGenePair uses to hash
// gene-ID pairs. Because addition is commutative, the result does not
// depend on map iteration order, unlike hashing the serialized output
// stream would.
func checksum(t *Table) uint64 {
	var buf []byte
	var sum uint64
	for kmer, count := range t.counts {
		buf = append(buf[:0], kmer...)
		var countBytes [8]byte
		binary.LittleEndian.PutUint64(countBytes[:], uint64(count))
		buf = append(buf, countBytes[:]...)
		digest := highwayhash.Sum(buf, highwayKey[:])
		sum += binary.LittleEndian.Uint64(digest[:8])
	}
	return sum
}

// writeLines emits every k-mer/count pair in t to dst, sorted if
// requested.
func writeLines(t *Table, sorted bool, dst io.Writer) error {
	emit := func(kmer string, count int64) error {
		_, err := fmt.Fprintf(dst, "%s\t%d\n", kmer, count)
		return err
	}

	if !sorted {
		for kmer, count := range t.counts {
			if err := emit(kmer, count); err != nil {
				return errors.Wrap(err, "aggregate: writing line")
			}
		}
		return nil
	}

	if len(t.counts) <= sortThreshold {
		keys := make([]string, 0, len(t.counts))
		for kmer := range t.counts {
			keys = append(keys, kmer)
		}
		sort.Strings(keys)
		for _, kmer := range keys {
			if err := emit(kmer, t.counts[kmer]); err != nil {
				return errors.Wrap(err, "aggregate: writing line")
			}
		}
		return nil
	}

	tree := llrb.Tree{}
	for kmer := range t.counts {
		tree.Insert(sortedKey(kmer))
	}
	var emitErr error
	tree.Do(func(c llrb.Comparable) bool {
		kmer := string(c.(sortedKey))
		if err := emit(kmer, t.counts[kmer]); err != nil {
			emitErr = errors.Wrap(err, "aggregate: writing line")
			return true
		}
		return false
	})
	return emitErr
}
