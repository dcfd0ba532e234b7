// Package supermer implements the minimizer-based super-mer segmenter
// (component C2): it collapses runs of consecutive k-mer windows that share
// a local minimizer into a single super-mer, so that downstream stages
// process one run instead of k-m+1 overlapping windows.
package supermer

import "bytes"

// SuperMer is a maximal contiguous substring of a bundle in which every
// length-k window has the same minimizer. Data is a slice into the
// originating bundle; it does not outlive the bundle it was computed from.
type SuperMer struct {
	Data []byte
}

// Segment returns the ordered super-mers of bundle for k-mer length k and
// minimizer length m, where 0 < m <= k. If len(bundle) < k, Segment
// returns nil, matching the contract that a bundle shorter than k carries
// no k-mer windows.
//
// The minimizer of each sliding k-mer window is tracked with a monotone
// deque over the window's k-m+1 candidate m-mers, giving O(n*m) total work
// instead of the O(n*(k-m+1)*m) naive recomputation; the externally
// observed grouping is identical either way.
func Segment(bundle []byte, k, m int) []SuperMer {
	n := len(bundle)
	if n < k || m <= 0 || m > k {
		return nil
	}
	windowSize := k - m + 1 // # of m-mer candidates per k-mer window
	nMmers := n - m + 1

	// deque holds m-mer start positions in non-decreasing order of m-mer
	// value; deque[0] is always the minimizer position of the k-mer
	// window currently in scope.
	deque := make([]int, 0, windowSize)
	push := func(idx int) {
		for len(deque) > 0 && bytes.Compare(mmer(bundle, deque[len(deque)-1], m), mmer(bundle, idx, m)) > 0 {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, idx)
	}
	for idx := 0; idx < windowSize; idx++ {
		push(idx)
	}

	numWindows := n - k + 1
	runStart := 0
	curMinVal := mmer(bundle, deque[0], m)

	var out []SuperMer
	for i := 1; i < numWindows; i++ {
		if newIdx := i + windowSize - 1; newIdx < nMmers {
			push(newIdx)
		}
		for len(deque) > 0 && deque[0] < i {
			deque = deque[1:]
		}
		minVal := mmer(bundle, deque[0], m)
		if !bytes.Equal(minVal, curMinVal) {
			out = append(out, SuperMer{Data: bundle[runStart : i-1+k]})
			runStart = i
		}
		curMinVal = minVal
	}
	out = append(out, SuperMer{Data: bundle[runStart:n]})
	return out
}

func mmer(bundle []byte, pos, m int) []byte { return bundle[pos : pos+m] }

// Kmers returns the len(sm.Data)-k+1 constituent k-mer windows of sm, given
// the k that produced it. The pipeline's producers use it to build one
// queue batch per super-mer, and tests use it to check the round-trip
// invariant.
func (sm SuperMer) Kmers(k int) [][]byte {
	n := len(sm.Data)
	if n < k {
		return nil
	}
	out := make([][]byte, 0, n-k+1)
	for i := 0; i+k <= n; i++ {
		out = append(out, sm.Data[i:i+k])
	}
	return out
}
