// Package stats collects run-wide counters for a kmerize pipeline run:
// how much input was read, how it was segmented, and how the counting
// stage disposed of the resulting k-mers.
package stats

import "time"

// Stats accumulates counters across an entire run. Each producer and
// consumer worker keeps its own Stats and merges it into a single run
// total at the end, the same associative-merge pattern as
// fusion.Stats.
type Stats struct {
	// Bundles is the number of sequence bundles read by the bundler.
	Bundles int
	// BundleBytes is the total size of all bundles, excluding FASTA
	// header lines. The k-1 overlap bytes repeated at the start of a
	// bundle are counted again in that bundle.
	BundleBytes int64
	// SuperMers is the number of super-mers produced by the segmenter.
	SuperMers int
	// Kmers is the number of k-mer occurrences extracted from super-mers
	// and offered to the counting stage.
	Kmers int64
	// Inserted is the number of k-mer occurrences a shard accepted,
	// either as a new key or as an increment to an existing one.
	Inserted int64
	// Overflowed is the number of k-mer occurrences a shard's probe
	// bound rejected and that were routed to the overflow log.
	Overflowed int64
	// QueueWaitNanos is the cumulative time producers spent blocked
	// pushing onto a full work queue.
	QueueWaitNanos int64
	// PeakQueueDepth is the largest number of buffered batches any
	// worker observed in the work queue over the run, sampled from both
	// ends (producer after Push, consumer after Pop).
	PeakQueueDepth int
	// Elapsed is the wall-clock duration of the run, set once by the
	// driver after every worker has finished.
	Elapsed time.Duration
}

// Merge adds the field values of o into s and returns the result,
// leaving o unmodified. PeakQueueDepth and Elapsed take the max of the
// two operands rather than summing, since they are high-water marks,
// not additive counts.
func (s Stats) Merge(o Stats) Stats {
	s.Bundles += o.Bundles
	s.BundleBytes += o.BundleBytes
	s.SuperMers += o.SuperMers
	s.Kmers += o.Kmers
	s.Inserted += o.Inserted
	s.Overflowed += o.Overflowed
	s.QueueWaitNanos += o.QueueWaitNanos
	if o.PeakQueueDepth > s.PeakQueueDepth {
		s.PeakQueueDepth = o.PeakQueueDepth
	}
	if o.Elapsed > s.Elapsed {
		s.Elapsed = o.Elapsed
	}
	return s
}
