package nucleotide

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNonACGTPresent(t *testing.T) {
	assert.False(t, IsNonACGTPresent([]byte("ACGTACGT")))
	assert.False(t, IsNonACGTPresent([]byte("")))
	assert.True(t, IsNonACGTPresent([]byte("ACGN")))
	assert.True(t, IsNonACGTPresent([]byte("acgt")))
	assert.True(t, IsNonACGTPresent([]byte("ACG ")))
}

func TestReverseComp8InplaceEvenLength(t *testing.T) {
	b := []byte("AACCGGTT")
	ReverseComp8Inplace(b)
	assert.Equal(t, "AACCGGTT", string(b))
}

func TestReverseComp8InplaceOddLength(t *testing.T) {
	b := []byte("AACGT")
	ReverseComp8Inplace(b)
	assert.Equal(t, "ACGTT", string(b))
}

func TestReverseComp8InplaceMapsNonACGTToN(t *testing.T) {
	b := []byte("ACGTN")
	ReverseComp8Inplace(b)
	assert.Equal(t, "NACGT", string(b))
}

func TestReverseComp8InplaceIsSelfInverse(t *testing.T) {
	orig := []byte("ACGTACGTT")
	b := append([]byte(nil), orig...)
	ReverseComp8Inplace(b)
	ReverseComp8Inplace(b)
	assert.Equal(t, string(orig), string(b))
}
