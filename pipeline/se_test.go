package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/opengene/fqdemux/config"
	"github.com/opengene/fqdemux/demux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestRunSERoutesBySequenceBarcode(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	in1 := filepath.Join(dir, "in.fastq")
	// Barcode AAAA routes to sampleA, CCCC to sampleB, GGGG matches neither.
	writeFile(t, in1, ""+
		"@r1\nAAAATTTT\n+\nIIIIIIII\n"+
		"@r2\nCCCCGGGG\n+\nJJJJJJJJ\n"+
		"@r3\nGGGGAAAA\n+\nKKKKKKKK\n")

	out := filepath.Join(dir, "out")
	cfg := &config.Config{
		In1:               in1,
		OutFolder:         out,
		UndecodedFileStem: "undetermined",
		Samples: []demux.Sample{
			{FileStem: "sampleA", Index1: "AAAA"},
			{FileStem: "sampleB", Index1: "CCCC"},
		},
		BarcodePlace:  demux.AtRead1,
		BarcodeStart:  0,
		BarcodeLength: 4,
		ThreadNum:     4,
	}
	require.NoError(t, cfg.Validate())

	ctx := vcontext.Background()
	require.NoError(t, RunSE(ctx, cfg))

	gotA, err := os.ReadFile(filepath.Join(out, "sampleA.R1.fastq"))
	require.NoError(t, err)
	assert.Equal(t, "@r1\nTTTT\n+\nIIII\n", string(gotA))

	gotB, err := os.ReadFile(filepath.Join(out, "sampleB.R1.fastq"))
	require.NoError(t, err)
	assert.Equal(t, "@r2\nGGGG\n+\nJJJJ\n", string(gotB))

	gotU, err := os.ReadFile(filepath.Join(out, "undetermined.R1.fastq"))
	require.NoError(t, err)
	assert.Equal(t, "@r3\nGGGGAAAA\n+\nKKKKKKKK\n", string(gotU))
}

func TestRunSEDiscardsUndeterminedWhenConfigured(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	in1 := filepath.Join(dir, "in.fastq")
	writeFile(t, in1, "@r1\nGGGGAAAA\n+\nIIIIIIII\n")

	out := filepath.Join(dir, "out")
	cfg := &config.Config{
		In1:       in1,
		OutFolder: out,
		Samples: []demux.Sample{
			{FileStem: "sampleA", Index1: "AAAA"},
		},
		BarcodePlace:     demux.AtRead1,
		BarcodeStart:     0,
		BarcodeLength:    4,
		ThreadNum:        4,
		DiscardUndecoded: true,
	}
	require.NoError(t, cfg.Validate())

	ctx := vcontext.Background()
	require.NoError(t, RunSE(ctx, cfg))

	_, err := os.Stat(filepath.Join(out, "undetermined.R1.fastq"))
	assert.True(t, os.IsNotExist(err))

	gotA, err := os.ReadFile(filepath.Join(out, "sampleA.R1.fastq"))
	require.NoError(t, err)
	assert.Equal(t, "", string(gotA))
}
