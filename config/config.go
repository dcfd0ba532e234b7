// Package config defines the tunables of the k-mer counting pipeline and
// their defaults.
package config

import (
	"runtime"

	"github.com/pkg/errors"
)

// Opts holds the configuration of a single counting run. Every field has a
// usable default (see DefaultOpts); callers normally start from DefaultOpts
// and override only the fields they care about.
type Opts struct {
	// KmerLength is k, the length of the counted substrings.
	KmerLength int
	// MinimizerLength is m, the length of the minimizer used to group k-mers
	// into super-mers. Must satisfy 0 < m <= k.
	MinimizerLength int

	// BlockSize is the target size, in bytes, of a sequence bundle (C1).
	// The final bundle of a file may be shorter.
	BlockSize int

	// ProducerThreads is the number of goroutines segmenting bundles into
	// k-mer batches.
	ProducerThreads int
	// ConsumerThreads is the number of goroutines draining the work queue;
	// it also determines the number of shards in the hash counter, since
	// each consumer owns exactly one shard.
	ConsumerThreads int

	// ShardCapacity is the number of slots in each shard's count table.
	ShardCapacity int
	// MaxProbeSteps bounds the quadratic probe sequence; an insert that
	// doesn't find a slot within this many steps is routed to the overflow
	// log instead.
	MaxProbeSteps int
	// QueueCapacity is the high-water mark of the bounded work queue. A
	// value of 0 means "size it from ConsumerThreads" (see Validate).
	QueueCapacity int

	// RejectAmbiguous, when true, splits the nucleotide stream at every run
	// of 'N' bytes instead of passing them through as ordinary bases.
	RejectAmbiguous bool
	// SortedOutput, when true, emits output lines in ascending k-mer order.
	SortedOutput bool
	// Checksum, when true, logs a commutative checksum of the output
	// multiset after the run completes.
	Checksum bool
}

// DefaultOpts holds the out-of-the-box tunables for the pipeline.
var DefaultOpts = Opts{
	KmerLength:      31,
	MinimizerLength: 15,
	BlockSize:       1 << 20, // 1 MiB
	ProducerThreads: runtime.NumCPU(),
	ConsumerThreads: runtime.NumCPU(),
	ShardCapacity:   1000003, // prime, per the open-addressing design note
	MaxProbeSteps:   64,
	QueueCapacity:   0, // derived from ConsumerThreads in Validate
	RejectAmbiguous: false,
	SortedOutput:    false,
	Checksum:        false,
}

// Validate checks that o's fields are internally consistent, filling in
// any zero-valued field that has a derived default. It returns a
// ConfigError-class error (wrapped with github.com/pkg/errors) on the
// first problem found.
func (o *Opts) Validate() error {
	if o.KmerLength <= 0 {
		return errors.Errorf("config: k must be positive, got %d", o.KmerLength)
	}
	if o.MinimizerLength <= 0 || o.MinimizerLength > o.KmerLength {
		return errors.Errorf("config: m must satisfy 0 < m <= k, got m=%d k=%d", o.MinimizerLength, o.KmerLength)
	}
	if o.BlockSize < o.KmerLength {
		return errors.Errorf("config: block_size (%d) must be >= k (%d)", o.BlockSize, o.KmerLength)
	}
	if o.ProducerThreads <= 0 {
		return errors.Errorf("config: producer_threads must be positive, got %d", o.ProducerThreads)
	}
	if o.ConsumerThreads <= 0 {
		return errors.Errorf("config: consumer_threads must be positive, got %d", o.ConsumerThreads)
	}
	if o.ShardCapacity <= 0 {
		return errors.Errorf("config: shard_capacity must be positive, got %d", o.ShardCapacity)
	}
	if o.MaxProbeSteps <= 0 {
		return errors.Errorf("config: max_probe_steps must be positive, got %d", o.MaxProbeSteps)
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 4 * o.ConsumerThreads
	}
	return nil
}
