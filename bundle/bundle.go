// Package bundle implements the sequence bundler (component C1): it strips
// FASTA headers and concatenates the remaining nucleotide bytes of a file
// into fixed-size, k-1-overlapping byte bundles ready for super-mer
// segmentation.
package bundle

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Bundle is one fixed-size (or, for the last bundle of a record, possibly
// short) chunk of contiguous nucleotide bytes read from a single FASTA
// file. Data is owned by whoever holds the Bundle; it is handed off exactly
// once, from the Reader to the super-mer segmenter.
type Bundle struct {
	Data []byte
	// Seq is a file-local, monotonically increasing sequence number. It
	// exists only to let downstream stages log progress and order
	// diagnostics; no correctness property depends on it.
	Seq uint64
}

// Reader scans a single FASTA file (optionally gzip-compressed) and emits
// Bundles in the style of bufio.Scanner: call Scan in a loop, and use
// Bundle to fetch the most recent one.
type Reader struct {
	blockSize       int
	overlap         int
	rejectAmbiguous bool

	scanner *bufio.Scanner
	closer  io.Closer

	pending []byte
	ready   [][]byte
	seq     uint64
	cur     Bundle
	err     error
	done    bool
}

// Open opens path (through the grailbio/base/file abstraction, so local
// paths and object-store paths such as s3://... work identically) and
// returns a Reader over its nucleotide content. blockSize is the target
// bundle size; overlap is the number of trailing bytes of one bundle
// that is repeated as the start of the next (normally k-1, so that no
// k-mer window is lost at a bundle boundary). If path ends in ".gz" the
// content is transparently gunzipped.
func Open(ctx context.Context, path string, blockSize, overlap int, rejectAmbiguous bool) (*Reader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "bundle: opening %s", path)
	}
	var (
		rd     io.Reader = f.Reader(ctx)
		closer           = ioCloserFunc(func() error { return f.Close(ctx) })
	)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(rd)
		if err != nil {
			_ = closer.Close()
			return nil, errors.Wrapf(err, "bundle: opening gzip stream %s", path)
		}
		rd = gz
		inner := closer
		closer = ioCloserFunc(func() error {
			gzErr := gz.Close()
			innerErr := inner.Close()
			if gzErr != nil {
				return gzErr
			}
			return innerErr
		})
	}
	sc := bufio.NewScanner(rd)
	sc.Buffer(nil, 1<<20)
	return &Reader{
		blockSize:       blockSize,
		overlap:         overlap,
		rejectAmbiguous: rejectAmbiguous,
		scanner:         sc,
		closer:          closer,
	}, nil
}

type ioCloserFunc func() error

func (f ioCloserFunc) Close() error { return f() }

// Scan advances the Reader to the next Bundle. It returns false when there
// are no more bundles, either because the file has been fully consumed or
// because a read error occurred (check Err).
func (r *Reader) Scan() bool {
	for len(r.ready) == 0 {
		if !r.advance() {
			return false
		}
	}
	r.cur = Bundle{Data: r.ready[0], Seq: r.seq}
	r.seq++
	r.ready = r.ready[1:]
	return true
}

// Bundle returns the bundle produced by the most recent call to Scan.
func (r *Reader) Bundle() Bundle { return r.cur }

// Err returns the first error encountered while scanning, if any.
func (r *Reader) Err() error { return r.err }

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.closer.Close() }

// advance reads enough of the underlying file to either produce at least
// one ready bundle or reach EOF (at which point any residual bytes are
// flushed as a final short bundle). It returns false once there is
// nothing left to produce.
func (r *Reader) advance() bool {
	if r.done {
		return false
	}
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) > 0 && line[0] == '>' {
			r.resetRecord()
			continue
		}
		r.addLine(line)
		if len(r.ready) > 0 {
			return true
		}
	}
	if err := r.scanner.Err(); err != nil {
		r.err = errors.Wrap(err, "bundle: reading FASTA")
		log.Printf("bundle: read error: %v", r.err)
	}
	r.done = true
	if len(r.pending) > 0 {
		r.ready = append(r.ready, r.pending)
		r.pending = nil
	}
	return len(r.ready) > 0
}

// addLine appends one non-header line to the pending buffer, honoring the
// --reject-ambiguous policy of splitting the stream at every run of 'N'.
func (r *Reader) addLine(line []byte) {
	if !r.rejectAmbiguous {
		r.append(line)
		return
	}
	start := 0
	for i := 0; i <= len(line); i++ {
		if i == len(line) || isAmbiguous(line[i]) {
			if i > start {
				r.append(line[start:i])
			}
			if i < len(line) {
				r.resetRecord()
			}
			start = i + 1
		}
	}
}

func isAmbiguous(b byte) bool { return b == 'N' || b == 'n' }

// append adds b to the pending nucleotide buffer, peeling off full-size
// bundles (retaining the configured overlap) as the buffer grows past
// blockSize.
func (r *Reader) append(b []byte) {
	r.pending = append(r.pending, b...)
	for len(r.pending) >= r.blockSize {
		out := make([]byte, r.blockSize)
		copy(out, r.pending[:r.blockSize])
		r.ready = append(r.ready, out)

		keepFrom := r.blockSize - r.overlap
		rest := r.pending[keepFrom:]
		next := make([]byte, len(rest))
		copy(next, rest)
		r.pending = next
	}
}

// resetRecord ends the current logical FASTA record: whatever is pending
// is flushed as a (possibly short) bundle, and the k-1 overlap carry is
// dropped, since no valid k-mer spans a record boundary.
func (r *Reader) resetRecord() {
	if len(r.pending) > 0 {
		r.ready = append(r.ready, r.pending)
	}
	r.pending = nil
}
