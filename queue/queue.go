// Package queue implements the bounded work queue (component C3) that
// carries k-mer batches from producer workers (bundling + segmenting) to
// consumer workers (shard insertion). A Go buffered channel already
// satisfies the queue's push/pop/close contract exactly -- the close
// signal is authoritative, so no separate "producers done" flag is
// needed alongside it -- so Queue is a thin typed wrapper around one.
package queue

import "context"

// Batch is one unit of queued work: every k-mer occurrence pulled out of
// a single super-mer, handed to whichever consumer pops it; that
// consumer inserts the k-mers into its own shard.
type Batch struct {
	// Kmers holds the k-mer occurrences. Entries are independent byte
	// slices; a batch does not need to come from a contiguous region of
	// the source bundle.
	Kmers [][]byte
}

// Queue is a bounded FIFO of Batches shared by a producer pool and a
// consumer pool.
type Queue struct {
	ch chan Batch
}

// New returns a Queue that can hold up to capacity unconsumed batches
// before Push blocks.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan Batch, capacity)}
}

// Push enqueues a batch, blocking while the queue is full. It returns
// ctx.Err() without enqueuing if ctx is cancelled first, so a failed
// run can unblock producers stuck behind a consumer that stopped
// draining the queue.
func (q *Queue) Push(ctx context.Context, b Batch) error {
	select {
	case q.ch <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop removes and returns the next batch, blocking while the queue is
// empty. ok is false once the queue has been Closed and drained, the
// same signal range.Close semantics a consumer's `for batch := range`
// loop would see.
func (q *Queue) Pop() (b Batch, ok bool) {
	b, ok = <-q.ch
	return b, ok
}

// Close signals that no further batches will be pushed. Consumers drain
// whatever remains buffered and then see Pop return ok == false.
// Close must be called exactly once, after every producer has stopped
// pushing.
func (q *Queue) Close() {
	close(q.ch)
}

// Len reports the number of batches currently buffered, for stats
// reporting; it is a momentary snapshot under concurrent use.
func (q *Queue) Len() int { return len(q.ch) }
