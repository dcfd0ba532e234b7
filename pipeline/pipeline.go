// Package pipeline wires the bundler, segmenter, work queue, sharded
// counter, and aggregator into one run: the pipeline driver, component
// C6. It owns the producer and consumer goroutine pools and the
// top-level error and cancellation handling.
package pipeline

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/kmerize/aggregate"
	"github.com/grailbio/kmerize/bundle"
	"github.com/grailbio/kmerize/config"
	"github.com/grailbio/kmerize/counter"
	"github.com/grailbio/kmerize/queue"
	"github.com/grailbio/kmerize/stats"
	"github.com/grailbio/kmerize/supermer"
)

// Result is what a completed run produces: the merged count table and
// the accumulated run statistics.
type Result struct {
	Table *aggregate.Table
	Stats stats.Stats
}

// Run executes the full pipeline over paths, according to opts, and
// returns the merged table plus run statistics. The caller is
// responsible for writing the table out with aggregate.Write; Run
// itself never touches an output path.
func Run(ctx context.Context, paths []string, opts config.Opts) (Result, error) {
	start := time.Now()
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	shards := make([]*counter.Shard, opts.ConsumerThreads)
	for i := range shards {
		shards[i] = counter.NewShard(opts.ShardCapacity, opts.MaxProbeSteps)
	}
	overflow := counter.NewOverflow()
	q := queue.New(opts.QueueCapacity)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fanout := errors.Once{}

	var producerStats stats.Stats
	var producerMu sync.Mutex
	var wgProducers sync.WaitGroup

	work := make(chan string, len(paths))
	for _, p := range paths {
		work <- p
	}
	close(work)

	producers := opts.ProducerThreads
	if producers <= 0 {
		producers = runtime.NumCPU()
	}
	wgProducers.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wgProducers.Done()
			var local stats.Stats
			for path := range work {
				if err := produceFile(runCtx, path, opts, q, &local); err != nil {
					fanout.Set(err)
					cancel()
					return
				}
			}
			producerMu.Lock()
			producerStats = producerStats.Merge(local)
			producerMu.Unlock()
		}()
	}

	var consumerStats stats.Stats
	var consumerMu sync.Mutex
	var wgConsumers sync.WaitGroup
	wgConsumers.Add(len(shards))
	for _, shard := range shards {
		go func(shard *counter.Shard) {
			defer wgConsumers.Done()
			local := consumeShard(shard, overflow, q)
			consumerMu.Lock()
			consumerStats = consumerStats.Merge(local)
			consumerMu.Unlock()
		}(shard)
	}

	wgProducers.Wait()
	q.Close()
	wgConsumers.Wait()

	if err := fanout.Err(); err != nil {
		return Result{}, err
	}

	table := aggregate.Merge(shards, overflow)
	total := producerStats.Merge(consumerStats)
	total.Elapsed = time.Since(start)

	log.Printf("kmerize: %d bundles, %d super-mers, %d k-mers, %d overflowed, %d distinct k-mers, peak queue depth %d, producer queue wait %s, %s",
		total.Bundles, total.SuperMers, total.Kmers, total.Overflowed, table.Len(),
		total.PeakQueueDepth, time.Duration(total.QueueWaitNanos), total.Elapsed)

	return Result{Table: table, Stats: total}, nil
}

// produceFile bundles and segments one input file, pushing each
// super-mer's k-mers onto the queue as one batch. Which shard ends up
// owning a given k-mer is decided later, by whichever consumer happens
// to dequeue its batch (see the concurrency model note in DESIGN.md);
// produceFile does no hashing of its own.
func produceFile(ctx context.Context, path string, opts config.Opts, q *queue.Queue, local *stats.Stats) error {
	r, err := bundle.Open(ctx, path, opts.BlockSize, opts.KmerLength-1, opts.RejectAmbiguous)
	if err != nil {
		return err
	}
	defer r.Close()

	for r.Scan() {
		b := r.Bundle()
		local.Bundles++
		local.BundleBytes += int64(len(b.Data))

		sms := supermer.Segment(b.Data, opts.KmerLength, opts.MinimizerLength)
		local.SuperMers += len(sms)
		for _, sm := range sms {
			kmers := sm.Kmers(opts.KmerLength)
			local.Kmers += int64(len(kmers))
			waitStart := time.Now()
			if err := q.Push(ctx, queue.Batch{Kmers: kmers}); err != nil {
				return err
			}
			local.QueueWaitNanos += int64(time.Since(waitStart))
			if depth := q.Len(); depth > local.PeakQueueDepth {
				local.PeakQueueDepth = depth
			}
		}
	}
	return r.Err()
}

// consumeShard runs one consumer worker's loop: pop batches until the
// queue closes, inserting every k-mer into shard and routing rejections
// to overflow.
func consumeShard(shard *counter.Shard, overflow *counter.Overflow, q *queue.Queue) stats.Stats {
	var local stats.Stats
	for {
		batch, ok := q.Pop()
		if !ok {
			return local
		}
		if depth := q.Len(); depth > local.PeakQueueDepth {
			local.PeakQueueDepth = depth
		}
		for _, kmer := range batch.Kmers {
			switch shard.Insert(kmer) {
			case counter.Ok:
				local.Inserted++
			case counter.OverflowReject:
				overflow.Append(kmer)
				local.Overflowed++
			}
		}
	}
}
