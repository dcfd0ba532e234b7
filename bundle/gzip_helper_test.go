package bundle_test

import (
	"io/ioutil"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func writeGzip(t *testing.T, path, contents string) {
	var buf []byte
	w := &byteBuf{&buf}
	gz := gzip.NewWriter(w)
	_, err := gz.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, ioutil.WriteFile(path, buf, 0644))
}

type byteBuf struct{ buf *[]byte }

func (b *byteBuf) Write(p []byte) (int, error) {
	*b.buf = append(*b.buf, p...)
	return len(p), nil
}
