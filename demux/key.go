package demux

import "github.com/opengene/fqdemux/nucleotide"

// MaxBarcodeLength is the longest barcode (or concatenated dual-index
// barcode) this package can pack into a key: a 2-bit encoding of 30 bases
// fits in 60 of the 63 usable bits of a signed int64.
const MaxBarcodeLength = 30

// invalidKey is returned whenever a barcode cannot be packed: too long, or
// containing a base outside {A, T, C, G}.
const invalidKey int64 = -1

func base2val(b byte) int64 {
	switch b {
	case 'A':
		return 0
	case 'T':
		return 1
	case 'C':
		return 2
	case 'G':
		return 3
	default:
		return -1
	}
}

// packKey 2-bit packs a nucleotide string into a signed 64-bit key, A=0,
// T=1, C=2, G=3, most-significant base first. It returns invalidKey if len
// exceeds MaxBarcodeLength or any byte is not in {A, T, C, G}.
func packKey(seq []byte) int64 {
	if len(seq) > MaxBarcodeLength {
		return invalidKey
	}
	if nucleotide.IsNonACGTPresent(seq) {
		return invalidKey
	}
	var key int64
	for _, b := range seq {
		key = (key << 2) | base2val(b)
	}
	return key
}

// packTwoPartKey packs a dual-index barcode: seq1 concatenated with seq2,
// as a single key, failing if the combined length exceeds MaxBarcodeLength
// or either segment contains a non-ACGT base.
func packTwoPartKey(seq1, seq2 []byte) int64 {
	if len(seq1)+len(seq2) > MaxBarcodeLength {
		return invalidKey
	}
	if nucleotide.IsNonACGTPresent(seq1) || nucleotide.IsNonACGTPresent(seq2) {
		return invalidKey
	}
	var key int64
	for _, b := range seq1 {
		key = (key << 2) | base2val(b)
	}
	for _, b := range seq2 {
		key = (key << 2) | base2val(b)
	}
	return key
}

// hashSieveBits sizes the dense open-addressed probe table: 2^26 entries.
const hashSieveBits = 26
const hashSieveSize = 1 << hashSieveBits
const hashSieveMask = hashSieveSize - 1

// hashMultiplier is the odd multiplier the sieve hash uses to spread
// 2-bit-packed keys across the table.
const hashMultiplier = 0x66225D4B

// sieveHash computes the dense-table slot for a packed barcode key.
func sieveHash(key int64) int {
	return int((uint64(key) * hashMultiplier) & hashSieveMask)
}
