package demux

import (
	"testing"

	"github.com/opengene/fqdemux/simpleread"
	"github.com/stretchr/testify/assert"
)

func mustRead(t *testing.T, name, seq, qual string) *simpleread.Record {
	t.Helper()
	raw := []byte(name + "\n" + seq + "\n+\n" + qual + "\n")
	r, err := simpleread.New(raw, "test.fastq", 0)
	assert.NoError(t, err)
	return r
}

func TestDemuxExactMatch(t *testing.T) {
	d, err := New([]Sample{{FileStem: "A", Index1: "ACGT"}}, AtRead1, 0, 4, 0)
	assert.NoError(t, err)

	r := mustRead(t, "@r1", "ACGTNNNNNNNNNNNNNNNNNNNNNNNNNNNN", "IIIIIIIIIIIIIIIIIIIIIIIIIIIIIIII")
	sample, err := d.Demux(r)
	assert.NoError(t, err)
	assert.Equal(t, 0, sample)
}

func TestDemuxOneMismatch(t *testing.T) {
	d, err := New([]Sample{{FileStem: "A", Index1: "ACGT"}}, AtRead1, 0, 4, 1)
	assert.NoError(t, err)

	r := mustRead(t, "@r1", "ACGGNNNNNNNNNNNNNNNNNNNNNNNNNNNN", "IIIIIIIIIIIIIIIIIIIIIIIIIIIIIIII")
	sample, err := d.Demux(r)
	assert.NoError(t, err)
	assert.Equal(t, 0, sample)
}

func TestDemuxUndecodedNonACGT(t *testing.T) {
	d, err := New([]Sample{{FileStem: "A", Index1: "ACGT"}}, AtRead1, 0, 4, 0)
	assert.NoError(t, err)

	r := mustRead(t, "@r1", "ACGNNNNNNNNNNNNNNNNNNNNNNNNNNNNN", "IIIIIIIIIIIIIIIIIIIIIIIIIIIIIIII")
	sample, err := d.Demux(r)
	assert.NoError(t, err)
	assert.Equal(t, -1, sample)
}

func TestDemuxUndecodedNoMatch(t *testing.T) {
	d, err := New([]Sample{{FileStem: "A", Index1: "ACGT"}}, AtRead1, 0, 4, 0)
	assert.NoError(t, err)

	r := mustRead(t, "@r1", "TTTTNNNNNNNNNNNNNNNNNNNNNNNNNNNN", "IIIIIIIIIIIIIIIIIIIIIIIIIIIIIIII")
	sample, err := d.Demux(r)
	assert.NoError(t, err)
	assert.Equal(t, -1, sample)
}

func TestDemuxAmbiguousRoutesToOneSample(t *testing.T) {
	d, err := New([]Sample{
		{FileStem: "A", Index1: "ACGT"},
		{FileStem: "B", Index1: "ACGG"},
	}, AtRead1, 0, 4, 1)
	assert.NoError(t, err)

	r := mustRead(t, "@r1", "ACGANNNNNNNNNNNNNNNNNNNNNNNNNNNN", "IIIIIIIIIIIIIIIIIIIIIIIIIIIIIIII")
	sample, err := d.Demux(r)
	assert.NoError(t, err)
	assert.Contains(t, []int{0, 1}, sample)

	// Repeated lookups against the same immutable dictionary are stable.
	sample2, err := d.Demux(r)
	assert.NoError(t, err)
	assert.Equal(t, sample, sample2)
}

func TestDemuxDualIndex(t *testing.T) {
	d, err := New([]Sample{{FileStem: "A", Index1: "ACGT", Index2: "TTGA"}}, AtBothIndex, 0, 0, 0)
	assert.NoError(t, err)

	r := mustRead(t, "@RUN:1:1:1:1 1:N:0:ACGT+TTGA", "ACGTACGTACGTACGTACGTACGTACGTAC", "IIIIIIIIIIIIIIIIIIIIIIIIIIIIII")
	sample, err := d.DemuxPair(r, r)
	assert.NoError(t, err)
	assert.Equal(t, 0, sample)
}

func TestNewRejectsOversizeBarcode(t *testing.T) {
	_, err := New([]Sample{{FileStem: "A", Index1: "ACGTACGTACGTACGTACGTACGTACGTACGT"}}, AtRead1, 0, 33, 0)
	assert.Error(t, err)
}

func TestNewRejectsNonACGTBarcode(t *testing.T) {
	_, err := New([]Sample{{FileStem: "A", Index1: "ACGN"}}, AtRead1, 0, 4, 0)
	assert.Error(t, err)
}
