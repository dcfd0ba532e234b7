package aggregate_test

import (
	"bufio"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/grailbio/kmerize/aggregate"
	"github.com/grailbio/kmerize/counter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildShards(t *testing.T, kmerLists [][]string) []*counter.Shard {
	var shards []*counter.Shard
	for _, kmers := range kmerLists {
		s := counter.NewShard(997, 32)
		for _, k := range kmers {
			require.Equal(t, counter.Ok, s.Insert([]byte(k)))
		}
		shards = append(shards, s)
	}
	return shards
}

func readLines(t *testing.T, path string) []string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if sc.Text() != "" {
			lines = append(lines, sc.Text())
		}
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestMergeCombinesDisjointShards(t *testing.T) {
	shards := buildShards(t, [][]string{{"AAA", "CCC"}, {"GGG"}})
	overflow := counter.NewOverflow()
	tbl := aggregate.Merge(shards, overflow)
	assert.Equal(t, 3, tbl.Len())
}

func TestMergeFoldsInOverflowCounts(t *testing.T) {
	shards := buildShards(t, [][]string{{"AAA"}})
	overflow := counter.NewOverflow()
	overflow.Append([]byte("AAA"))
	overflow.Append([]byte("TTT"))
	tbl := aggregate.Merge(shards, overflow)
	assert.Equal(t, 2, tbl.Len())
}

func TestWriteProducesTabSeparatedLines(t *testing.T) {
	shards := buildShards(t, [][]string{{"AAA", "CCC"}})
	tbl := aggregate.Merge(shards, counter.NewOverflow())

	dir, err := ioutil.TempDir("", "aggregate_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "out.tsv")

	require.NoError(t, aggregate.Write(context.Background(), path, tbl, aggregate.WriteOpts{}))
	lines := readLines(t, path)
	require.Len(t, lines, 2)
	for _, line := range lines {
		parts := strings.Split(line, "\t")
		require.Len(t, parts, 2)
		assert.Equal(t, "1", parts[1])
	}
}

func TestWriteSortedOrdersByKmer(t *testing.T) {
	shards := buildShards(t, [][]string{{"TTT", "AAA", "CCC", "GGG"}})
	tbl := aggregate.Merge(shards, counter.NewOverflow())

	dir, err := ioutil.TempDir("", "aggregate_test_sorted")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "out.tsv")

	require.NoError(t, aggregate.Write(context.Background(), path, tbl, aggregate.WriteOpts{Sorted: true}))
	lines := readLines(t, path)
	var kmers []string
	for _, line := range lines {
		kmers = append(kmers, strings.Split(line, "\t")[0])
	}
	want := append([]string{}, kmers...)
	sort.Strings(want)
	assert.Equal(t, want, kmers)
}

// TestWriteChecksumLeavesOutputFileUnchanged pins down SPEC_FULL.md
// §6's output format as unconditional: -checksum must not add a
// trailer line or otherwise alter the "<kmer>\t<count>\n" stream. The
// checksum itself is only logged (see checksum_internal_test.go for
// that computation's own properties).
func TestWriteChecksumLeavesOutputFileUnchanged(t *testing.T) {
	shards := buildShards(t, [][]string{{"AAA", "CCC"}})
	tbl := aggregate.Merge(shards, counter.NewOverflow())

	dir, err := ioutil.TempDir("", "aggregate_test_checksum")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	withoutPath := filepath.Join(dir, "without.tsv")
	withPath := filepath.Join(dir, "with.tsv")
	require.NoError(t, aggregate.Write(context.Background(), withoutPath, tbl, aggregate.WriteOpts{}))
	require.NoError(t, aggregate.Write(context.Background(), withPath, tbl, aggregate.WriteOpts{Checksum: true}))

	withoutLines := readLines(t, withoutPath)
	withLines := readLines(t, withPath)
	assert.ElementsMatch(t, withoutLines, withLines)
	for _, line := range withLines {
		assert.Len(t, strings.Split(line, "\t"), 2)
	}
}
