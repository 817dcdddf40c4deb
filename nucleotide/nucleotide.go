// Package nucleotide holds the two ASCII byte-table scans the demultiplexing
// core needs over raw sequence bytes: alphabet validation and
// reverse-complementation. Both are plain lookup-table loops, the same
// technique the teacher's biosimd package uses for its non-SIMD fallback,
// trimmed to just the two primitives this module actually calls.
package nucleotide

var isNotACGT = [256]bool{}

func init() {
	for i := range isNotACGT {
		isNotACGT[i] = true
	}
	for _, b := range []byte("ACGT") {
		isNotACGT[b] = false
	}
}

// IsNonACGTPresent reports whether ascii8 contains any byte outside the
// capital-ACGT alphabet.
func IsNonACGTPresent(ascii8 []byte) bool {
	for _, b := range ascii8 {
		if isNotACGT[b] {
			return true
		}
	}
	return false
}

var revComp = [256]byte{}

func init() {
	for i := range revComp {
		revComp[i] = 'N'
	}
	revComp['A'], revComp['T'] = 'T', 'A'
	revComp['C'], revComp['G'] = 'G', 'C'
}

// ReverseComp8Inplace reverse-complements ascii8 in place, mapping 'A' to
// 'T', 'C' to 'G', 'G' to 'C', 'T' to 'A', and everything else to 'N'.
func ReverseComp8Inplace(ascii8 []byte) {
	n := len(ascii8)
	half := n >> 1
	for i, j := 0, n-1; i != half; i, j = i+1, j-1 {
		ascii8[i], ascii8[j] = revComp[ascii8[j]], revComp[ascii8[i]]
	}
	if n&1 == 1 {
		ascii8[half] = revComp[ascii8[half]]
	}
}
