// Package demux implements the barcode-indexed classifier: given a set of
// samples and a mismatch tolerance, it builds an immutable dictionary once
// and thereafter maps each incoming read's barcode to a sample index in
// O(1), tolerating 0, 1, or 2 Hamming-distance mismatches.
package demux

import (
	"github.com/opengene/fqdemux/fqerr"
	"github.com/opengene/fqdemux/nucleotide"
	"github.com/opengene/fqdemux/simpleread"
	"v.io/x/lib/vlog"
)

// Place identifies where the classifying barcode lives on a read.
type Place int

const (
	// AtRead1 takes the barcode from a fixed offset within read1's
	// sequence.
	AtRead1 Place = iota
	// AtRead2 takes the barcode from a fixed offset within read2's
	// sequence (paired-end only).
	AtRead2
	// AtIndex1 takes the barcode from the Illumina index1 token in the
	// read name.
	AtIndex1
	// AtIndex2 takes the barcode from the Illumina index2 token in the
	// read name.
	AtIndex2
	// AtBothIndex concatenates Illumina index1 and index2 into one barcode.
	AtBothIndex
)

// Sample is one demultiplexing target: a file stem and the barcode(s) that
// route reads to it.
type Sample struct {
	FileStem string
	Index1   string
	Index2   string
}

var acgt = [4]byte{'A', 'T', 'C', 'G'}

// Demuxer is the barcode classifier. It is safe for concurrent use by
// multiple goroutines once constructed: the dictionary never mutates after
// New returns.
type Demuxer struct {
	place         Place
	barcodeStart  int
	barcodeLength int
	dict          *dictionary
}

// New builds a Demuxer for the given samples, barcode location/length, and
// mismatch tolerance (0, 1, or 2). It fails with fqerr.ConfigInvalid if any
// sample's barcode is empty, longer than demux.MaxBarcodeLength, or contains
// a character outside {A, T, C, G}.
func New(samples []Sample, place Place, barcodeStart, barcodeLength, mismatch int) (*Demuxer, error) {
	d := &Demuxer{
		place:         place,
		barcodeStart:  barcodeStart,
		barcodeLength: barcodeLength,
		dict:          newDictionary(),
	}

	for i, s := range samples {
		barcode := s.Index1
		if place == AtBothIndex {
			barcode = s.Index1 + s.Index2
		}
		if barcode == "" {
			return nil, fqerr.New(fqerr.ConfigInvalid, "sample has no barcode", s.FileStem)
		}
		if len(barcode) > MaxBarcodeLength {
			return nil, fqerr.New(fqerr.ConfigInvalid, "barcode longer than 30bp", s.FileStem, barcode)
		}
		key := packKey([]byte(barcode))
		if key < 0 {
			return nil, fqerr.New(fqerr.ConfigInvalid, "barcode contains a non-ACGT base", s.FileStem, barcode)
		}
		d.dict.insert(key, i)

		if mismatch >= 1 {
			insertSingleMismatches(d.dict, []byte(barcode), i)
		}
		if mismatch == 2 {
			insertDoubleMismatches(d.dict, []byte(barcode), i)
		}
	}

	if d.dict.collisions > 0 {
		vlog.VI(1).Infof("demux: %d hash sieve slot(s) hold keys from more than one sample; keys generated by more than one sample are routed last-insert-wins", d.dict.collisions)
	}

	return d, nil
}

func insertSingleMismatches(dict *dictionary, barcode []byte, sampleID int) {
	mutant := append([]byte(nil), barcode...)
	for p, origin := range barcode {
		for _, b := range acgt {
			if b == origin {
				continue
			}
			mutant[p] = b
			dict.insert(packKey(mutant), sampleID)
		}
		mutant[p] = origin
	}
}

func insertDoubleMismatches(dict *dictionary, barcode []byte, sampleID int) {
	mutant := append([]byte(nil), barcode...)
	for p, originP := range barcode {
		for q, originQ := range barcode {
			if p == q {
				continue
			}
			for _, b1 := range acgt {
				if b1 == originP {
					continue
				}
				for _, b2 := range acgt {
					if b2 == originQ {
						continue
					}
					mutant[p] = b1
					mutant[q] = b2
					dict.insert(packKey(mutant), sampleID)
				}
			}
			mutant[q] = originQ
		}
		mutant[p] = originP
	}
}

// Demux classifies a single-end read, returning a sample index in [0, S) or
// -1 if the read is undecoded.
func (d *Demuxer) Demux(r *simpleread.Record) (int, error) {
	key, err := d.key(r)
	if err != nil {
		return -1, err
	}
	if key < 0 {
		return -1, nil
	}
	return d.dict.lookup(key), nil
}

// DemuxPair classifies a paired-end read, choosing r1 or r2 as the barcode
// source according to the configured Place.
func (d *Demuxer) DemuxPair(r1, r2 *simpleread.Record) (int, error) {
	if d.place == AtRead2 {
		return d.Demux(r2)
	}
	return d.Demux(r1)
}

func (d *Demuxer) key(r *simpleread.Record) (int64, error) {
	switch d.place {
	case AtRead1, AtRead2:
		seq := r.Seq()
		if d.barcodeStart+d.barcodeLength > len(seq) {
			return -1, nil
		}
		span := seq[d.barcodeStart : d.barcodeStart+d.barcodeLength]
		if nucleotide.IsNonACGTPresent(span) {
			return -1, nil
		}
		return packKey(span), nil
	case AtIndex1:
		start, length, ok := r.Index1Place()
		if !ok {
			return 0, fqerr.New(fqerr.IndexUnavailable, "read lacks Illumina index1")
		}
		return packKey(r.Data[start : start+length]), nil
	case AtIndex2:
		start, length, ok := r.Index2Place()
		if !ok {
			return 0, fqerr.New(fqerr.IndexUnavailable, "read lacks Illumina index2")
		}
		return packKey(r.Data[start : start+length]), nil
	case AtBothIndex:
		s1, l1, s2, l2, ok := r.BothIndexPlaces()
		if !ok {
			return 0, fqerr.New(fqerr.IndexUnavailable, "read lacks dual Illumina indexes")
		}
		return packTwoPartKey(r.Data[s1:s1+l1], r.Data[s2:s2+l2]), nil
	default:
		return -1, nil
	}
}
