package stats_test

import (
	"testing"
	"time"

	"github.com/grailbio/kmerize/stats"
	"github.com/stretchr/testify/assert"
)

func TestMergeIsAssociative(t *testing.T) {
	a := stats.Stats{Bundles: 1, Kmers: 10, Inserted: 9, Overflowed: 1}
	b := stats.Stats{Bundles: 2, Kmers: 20, Inserted: 18, Overflowed: 2}
	c := stats.Stats{Bundles: 3, Kmers: 30, Inserted: 27, Overflowed: 3}

	left := a.Merge(b).Merge(c)
	right := a.Merge(b.Merge(c))
	assert.Equal(t, left, right)
	assert.Equal(t, 6, left.Bundles)
	assert.EqualValues(t, 60, left.Kmers)
	assert.EqualValues(t, 54, left.Inserted)
	assert.EqualValues(t, 6, left.Overflowed)
}

func TestMergeTakesMaxElapsed(t *testing.T) {
	a := stats.Stats{Elapsed: 3 * time.Second}
	b := stats.Stats{Elapsed: 7 * time.Second}
	assert.Equal(t, 7*time.Second, a.Merge(b).Elapsed)
	assert.Equal(t, 7*time.Second, b.Merge(a).Elapsed)
}

func TestMergeTakesMaxPeakQueueDepth(t *testing.T) {
	a := stats.Stats{PeakQueueDepth: 12}
	b := stats.Stats{PeakQueueDepth: 40}
	assert.Equal(t, 40, a.Merge(b).PeakQueueDepth)
	assert.Equal(t, 40, b.Merge(a).PeakQueueDepth)
}

func TestMergeLeavesOperandsUnmodified(t *testing.T) {
	a := stats.Stats{Bundles: 1}
	b := stats.Stats{Bundles: 2}
	_ = a.Merge(b)
	assert.Equal(t, 1, a.Bundles)
	assert.Equal(t, 2, b.Bundles)
}
