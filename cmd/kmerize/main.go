package main

//
// kmerize
//
// Counts k-mer occurrences across one or more FASTA files (optionally
// gzip-compressed) using a minimizer-based super-mer segmentation
// pipeline and a sharded, quadratic-probing hash counter.
//
//    kmerize -k 31 -m 15 -output counts.tsv reads1.fa reads2.fa.gz
//

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/kmerize/aggregate"
	"github.com/grailbio/kmerize/config"
	"github.com/grailbio/kmerize/pipeline"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: kmerize [flags] fasta-file...

kmerize counts k-mer occurrences across one or more input FASTA files
and writes "<kmer>\t<count>" lines to -output.

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage

	opts := config.DefaultOpts
	outputPath := flag.String("output", "", "Path to write the k-mer count table to. Required.")
	flag.IntVar(&opts.KmerLength, "k", opts.KmerLength, "Length of counted k-mers.")
	flag.IntVar(&opts.MinimizerLength, "m", opts.MinimizerLength, "Minimizer length used to group k-mers into super-mers; 0 < m <= k.")
	flag.IntVar(&opts.BlockSize, "block-size", opts.BlockSize, "Target size, in bytes, of a sequence bundle.")
	flag.IntVar(&opts.ProducerThreads, "producer-threads", opts.ProducerThreads, "Number of goroutines segmenting bundles into k-mer batches.")
	flag.IntVar(&opts.ConsumerThreads, "consumer-threads", opts.ConsumerThreads, "Number of goroutines draining the work queue (= number of shards).")
	flag.IntVar(&opts.ShardCapacity, "shard-capacity", opts.ShardCapacity, "Number of slots in each shard's count table.")
	flag.IntVar(&opts.MaxProbeSteps, "max-probe-steps", opts.MaxProbeSteps, "Bound on quadratic probing before a k-mer is routed to the overflow log.")
	flag.IntVar(&opts.QueueCapacity, "queue-capacity", opts.QueueCapacity, "Bounded work-queue high-water mark; 0 derives it from -consumer-threads.")
	flag.BoolVar(&opts.RejectAmbiguous, "reject-ambiguous", opts.RejectAmbiguous, "Split the nucleotide stream at runs of N instead of counting through them.")
	flag.BoolVar(&opts.SortedOutput, "sorted-output", opts.SortedOutput, "Emit output lines in ascending k-mer order.")
	flag.BoolVar(&opts.Checksum, "checksum", opts.Checksum, "Log a commutative checksum of the output multiset.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if *outputPath == "" {
		log.Fatal("kmerize: -output is required")
	}
	if flag.NArg() == 0 {
		log.Fatal("kmerize: at least one input FASTA file is required")
	}

	run(ctx, *outputPath, flag.Args(), opts)
	log.Printf("kmerize: done")
}

// run executes one end-to-end pipeline invocation and writes the
// result, removing any partially-written output file on failure so a
// failed run never leaves misleading partial output behind. An
// operator interrupt (SIGINT/SIGTERM) cancels ctx, which propagates
// through pipeline.Run to abort both goroutine pools promptly.
func run(ctx context.Context, outputPath string, paths []string, opts config.Opts) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, paths, opts)
	if err != nil {
		log.Fatalf("kmerize: %v", err)
	}

	writeErr := aggregate.Write(ctx, outputPath, res.Table, aggregate.WriteOpts{
		Sorted:   opts.SortedOutput,
		Checksum: opts.Checksum,
	})
	if writeErr != nil {
		_ = os.Remove(outputPath)
		log.Fatalf("kmerize: writing %s: %v", outputPath, writeErr)
	}
	log.Printf("kmerize: stats: %+v", res.Stats)
}
