package sheet

import (
	"testing"

	"github.com/opengene/fqdemux/demux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVDualIndex(t *testing.T) {
	data := []byte("sampleA,ACGT,TTGA\nsampleB,CCGG,AATT\n")
	samples, err := Parse(data, false)
	require.NoError(t, err)
	assert.Equal(t, []demux.Sample{
		{FileStem: "sampleA", Index1: "ACGT", Index2: "TTGA"},
		{FileStem: "sampleB", Index1: "CCGG", Index2: "AATT"},
	}, samples)
}

func TestParseTSVSingleIndexSkipsCommentsAndBlankLines(t *testing.T) {
	data := []byte("# stem\tindex1\nsampleA\tACGT\n\nsampleB\tCCGG\n")
	samples, err := Parse(data, false)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "sampleA", samples[0].FileStem)
	assert.Equal(t, "", samples[0].Index2)
}

func TestParseRejectsLineWithTooFewColumns(t *testing.T) {
	_, err := Parse([]byte("sampleA\n"), false)
	assert.Error(t, err)
}

func TestParseFASTAUsesIdentifierAsStemAndSequenceAsIndex1(t *testing.T) {
	data := []byte(">sampleA description\nACGT\n>sampleB\nCC\nGG\n")
	samples, err := Parse(data, false)
	require.NoError(t, err)
	assert.Equal(t, []demux.Sample{
		{FileStem: "sampleA", Index1: "ACGT"},
		{FileStem: "sampleB", Index1: "CCGG"},
	}, samples)
}

func TestParseAppliesReverseComplementToBothIndexes(t *testing.T) {
	data := []byte("sampleA,AACG,TTGA\n")
	samples, err := Parse(data, true)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "CGTT", samples[0].Index1)
	assert.Equal(t, "TCAA", samples[0].Index2)
}

func TestParseDetectsCommaBeforeTabWhenCommaOccursFirst(t *testing.T) {
	data := []byte("sampleA,ACGT\tignored\n")
	samples, err := Parse(data, false)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "ACGT\tignored", samples[0].Index1)
}
