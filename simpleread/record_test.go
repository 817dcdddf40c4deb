package simpleread

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBasic(t *testing.T) {
	raw := []byte("@NB551106:9:H5Y5GBGX2:1:11207:3263:19029 1:N:0:GATCAG+AATACG\nGGCTCACTGCAACCTCTGCCGCCTGGATTCAAGT\n+\nAAAAAEAEEE/A/AAEEE/E/A<EA<EEEAEEEE\n")
	r, err := New(raw, "test.fastq", 0)
	assert.NoError(t, err)
	assert.Equal(t, byte('@'), r.Data[0])
	assert.Equal(t, "GGCTCACTGCAACCTCTGCCGCCTGGATTCAAGT", string(r.Seq()))
	assert.Equal(t, "AAAAAEAEEE/A/AAEEE/E/A<EA<EEEAEEEE", string(r.Qual()))
	r.Release()
}

func TestNewCRLF(t *testing.T) {
	raw := []byte("@name\r\nACGT\r\n+\r\nIIII\r\n")
	r, err := New(raw, "test.fastq", 0)
	assert.NoError(t, err)
	assert.Equal(t, 4, r.SeqLen)
	assert.Equal(t, "ACGT", string(r.Seq()))
	assert.Equal(t, "IIII", string(r.Qual()))
	r.Release()
}

func TestNewNoTerminalNewline(t *testing.T) {
	raw := []byte("@name\nACGT\n+\nIIII")
	r, err := New(raw, "test.fastq", 0)
	assert.NoError(t, err)
	assert.Equal(t, "IIII", string(r.Qual()))
	r.Release()
}

func TestNewRejectsMissingAt(t *testing.T) {
	raw := []byte("name\nACGT\n+\nIIII\n")
	_, err := New(raw, "test.fastq", 3)
	assert.Error(t, err)
}

func TestNewRejectsTruncated(t *testing.T) {
	raw := []byte("@name\nACGT\n")
	_, err := New(raw, "test.fastq", 0)
	assert.Error(t, err)
}

func TestIndexPlaces(t *testing.T) {
	raw := []byte("@RUN:1:1:1:1 1:N:0:ACGT+TTGA\nACGTACGTACGTACGTACGTACGTACGTAC\n+\nIIIIIIIIIIIIIIIIIIIIIIIIIIIIII\n")
	r, err := New(raw, "test.fastq", 0)
	assert.NoError(t, err)

	s1, l1, ok := r.Index1Place()
	assert.True(t, ok)
	assert.Equal(t, "ACGT", string(r.Data[s1:s1+l1]))

	s2, l2, ok := r.Index2Place()
	assert.True(t, ok)
	assert.Equal(t, "TTGA", string(r.Data[s2:s2+l2]))

	bs1, bl1, bs2, bl2, ok := r.BothIndexPlaces()
	assert.True(t, ok)
	assert.Equal(t, "ACGT", string(r.Data[bs1:bs1+bl1]))
	assert.Equal(t, "TTGA", string(r.Data[bs2:bs2+bl2]))
	r.Release()
}

func TestIndexPlacesSingleIndexOnly(t *testing.T) {
	raw := []byte("@RUN:1:1:1:1 1:N:0:ACGT\nACGTACGTACGTACGTACGTACGTACGTAC\n+\nIIIIIIIIIIIIIIIIIIIIIIIIIIIIII\n")
	r, err := New(raw, "test.fastq", 0)
	assert.NoError(t, err)

	s1, l1, ok := r.Index1Place()
	assert.True(t, ok)
	assert.Equal(t, "ACGT", string(r.Data[s1:s1+l1]))

	_, _, ok = r.Index2Place()
	assert.False(t, ok)
	r.Release()
}

func TestBytesInMemoryAccounting(t *testing.T) {
	before := BytesInMemory()
	raw := []byte("@name\nACGT\n+\nIIII\n")
	r, err := New(raw, "test.fastq", 0)
	assert.NoError(t, err)
	assert.Greater(t, BytesInMemory(), before)
	r.Release()
	assert.Equal(t, before, BytesInMemory())
}
