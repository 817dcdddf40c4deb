package pipeline

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/opengene/fqdemux/simpleread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRec(t *testing.T, raw string) *simpleread.Record {
	t.Helper()
	r, err := simpleread.New([]byte(raw), "t.fastq", 0)
	require.NoError(t, err)
	return r
}

func readAll(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	if filepath.Ext(path) != ".gz" {
		return data
	}
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return out
}

func TestWriterPlainWritesVerbatim(t *testing.T) {
	ctx := vcontext.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fastq")

	w, err := NewWriter(ctx, path, 1024, 0, false, false, 0, 0)
	require.NoError(t, err)
	rec := mustRec(t, "@r1\nACGT\n+\nIIII\n")
	require.NoError(t, w.WriteRead(rec))
	require.NoError(t, w.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "@r1\nACGT\n+\nIIII\n", string(got))
}

func TestWriterGzipSuffixCompresses(t *testing.T) {
	ctx := vcontext.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fastq.gz")

	w, err := NewWriter(ctx, path, 1024, 6, false, false, 0, 0)
	require.NoError(t, err)
	rec := mustRec(t, "@r1\nACGT\n+\nIIII\n")
	require.NoError(t, w.WriteRead(rec))
	require.NoError(t, w.Close())

	got := readAll(t, path)
	assert.Equal(t, "@r1\nACGT\n+\nIIII\n", string(got))
}

func TestWriterExcisesBarcodeFromSequenceAndQuality(t *testing.T) {
	ctx := vcontext.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fastq")

	// Barcode "GGTT" lives at offset 4 in the 8bp sequence.
	w, err := NewWriter(ctx, path, 1024, 0, false, false, 4, 4)
	require.NoError(t, err)
	rec := mustRec(t, "@r1\nACGTGGTT\n+\nIIIIJJJJ\n")
	require.NoError(t, w.WriteRead(rec))
	require.NoError(t, w.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "@r1\nACGT\n+\nIIII\n", string(got))
}

func TestWriterFlushesWhenBufferWouldOverflow(t *testing.T) {
	ctx := vcontext.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fastq")

	rec1 := "@r1\nACGT\n+\nIIII\n"
	rec2 := "@r2\nTTTT\n+\nJJJJ\n"
	w, err := NewWriter(ctx, path, len(rec1), 0, false, false, 0, 0)
	require.NoError(t, err)
	require.NoError(t, w.WriteRead(mustRec(t, rec1)))
	require.NoError(t, w.WriteRead(mustRec(t, rec2)))
	require.NoError(t, w.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rec1+rec2, string(got))
}
