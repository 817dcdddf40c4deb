// Package simpleread defines the zero-copy FASTQ record representation that
// flows through the demultiplexing pipeline: a single owned byte slice plus
// offsets into its name, sequence and quality lines. A Record is created
// exactly once by a reader and consumed exactly once by a writer; no pipeline
// stage between the two ever copies its bytes.
package simpleread

import (
	"fmt"
	"sync/atomic"

	"github.com/opengene/fqdemux/fqerr"
)

// recordOverhead approximates the fixed cost of a Record's own fields, added
// to BytesInMemory alongside the length of the owned data slice so the
// counter reflects total heap pressure, not just line bytes.
const recordOverhead = 64

// bytesInMemory is the process-wide count of bytes currently owned by live
// Records. Readers consult it to decide whether to pause (see the pipeline
// package). It is written on every New and every Release.
var bytesInMemory int64

// BytesInMemory returns the current estimate of record bytes outstanding in
// the pipeline.
func BytesInMemory() int64 {
	return atomic.LoadInt64(&bytesInMemory)
}

// Record is one FASTQ record: the four lines of the original input, verbatim
// including their terminating newlines, plus precomputed offsets into the
// name, sequence and quality lines. The '+' separator line is never indexed;
// callers reproduce it by writing the byte range between seq and qual.
type Record struct {
	Data []byte

	NameLen  int
	SeqStart int
	SeqLen   int
	QualStart int
	QualLen  int
}

// New builds a Record from a buffer already containing the four lines of one
// FASTQ record. data is retained, not copied; callers must not reuse or
// mutate it afterwards. filename and index are used only to annotate errors.
func New(data []byte, filename string, index int64) (*Record, error) {
	if len(data) == 0 || data[0] != '@' {
		return nil, fqerr.New(fqerr.MalformedRecord, fmt.Sprintf("record %d in %s does not start with '@'", index, filename))
	}

	r := &Record{Data: data}

	nameEnd := indexByte(data, 0, '\n')
	if nameEnd < 0 {
		return nil, malformed(filename, index, "missing newline after name line")
	}
	r.NameLen = trimCR(data, nameEnd)
	r.SeqStart = nameEnd + 1

	seqEnd := indexByte(data, r.SeqStart, '\n')
	if seqEnd < 0 {
		return nil, malformed(filename, index, "missing newline after sequence line")
	}
	r.SeqLen = trimCR(data, seqEnd) - r.SeqStart

	plusEnd := indexByte(data, seqEnd+1, '\n')
	if plusEnd < 0 {
		return nil, malformed(filename, index, "missing newline after '+' line")
	}
	r.QualStart = plusEnd + 1

	qualEnd := indexByte(data, r.QualStart, '\n')
	if qualEnd < 0 {
		// Final record in a file with no terminal newline: the quality line
		// runs to the end of the buffer.
		qualEnd = len(data)
		r.QualLen = qualEnd - r.QualStart
	} else {
		r.QualLen = trimCR(data, qualEnd) - r.QualStart
	}

	atomic.AddInt64(&bytesInMemory, int64(len(data))+recordOverhead)
	return r, nil
}

// Release must be called exactly once per Record, by whichever pipeline
// stage consumes it last (ordinarily the writer, or the demuxer when
// discarding an undecoded record). It subtracts the record's contribution to
// BytesInMemory. After Release the Record must not be used again.
func (r *Record) Release() {
	atomic.AddInt64(&bytesInMemory, -(int64(len(r.Data)) + recordOverhead))
}

// Seq returns the sequence line (no trailing newline or '\r').
func (r *Record) Seq() []byte {
	return r.Data[r.SeqStart : r.SeqStart+r.SeqLen]
}

// Qual returns the quality line (no trailing newline or '\r').
func (r *Record) Qual() []byte {
	return r.Data[r.QualStart : r.QualStart+r.QualLen]
}

// Name returns the name line (no trailing newline or '\r'), including the
// leading '@'.
func (r *Record) Name() []byte {
	return r.Data[:r.NameLen]
}

// illuminaScan implements the backward scan shared by Index1Place,
// Index2Place and BothIndexPlaces: starting just before the sequence line,
// walk backward tracking the last ':', the last '+', and the last ACGT base
// seen, stopping at the first ':' encountered (which, scanning backward, is
// the final ':' in the name line) or at the start of the buffer.
func (r *Record) illuminaScan() (colon, plus, lastBase int, foundColon bool) {
	plus, lastBase = -1, -1
	for p := r.SeqStart - 1; p >= 0; p-- {
		c := r.Data[p]
		if c == ':' {
			colon = p
			foundColon = true
			break
		}
		if c == '+' {
			plus = p
		}
		if lastBase < 0 {
			switch c {
			case 'A', 'T', 'C', 'G':
				lastBase = p
			}
		}
	}
	return
}

// Index1Place returns the byte span of the Illumina index1 token in the name
// line: the text after the final ':' up to (but not including) a '+' if one
// follows, or through the last ACGT base seen otherwise.
func (r *Record) Index1Place() (start, length int, ok bool) {
	colon, plus, lastBase, foundColon := r.illuminaScan()
	if !foundColon || (plus < 0 && lastBase < 0) {
		return 0, 0, false
	}
	start = colon + 1
	if plus >= 0 {
		length = plus - start
	} else {
		length = lastBase - start + 1
	}
	return start, length, true
}

// Index2Place returns the byte span of the Illumina index2 token: the text
// between a '+' and the last ACGT base seen after it. Requires both a '+'
// and a base strictly after it.
func (r *Record) Index2Place() (start, length int, ok bool) {
	_, plus, lastBase, foundColon := r.illuminaScan()
	if !foundColon || plus < 0 || lastBase <= plus {
		return 0, 0, false
	}
	start = plus + 1
	length = lastBase - start + 1
	return start, length, true
}

// BothIndexPlaces returns index1 and index2 spans together; it fails unless
// both are present, matching the stricter precondition Index2Place applies.
func (r *Record) BothIndexPlaces() (start1, len1, start2, len2 int, ok bool) {
	colon, plus, lastBase, foundColon := r.illuminaScan()
	if !foundColon || plus < 0 || lastBase <= plus {
		return 0, 0, 0, 0, false
	}
	start1 = colon + 1
	len1 = plus - start1
	start2 = plus + 1
	len2 = lastBase - start2 + 1
	return start1, len1, start2, len2, true
}

func indexByte(data []byte, from int, b byte) int {
	for i := from; i < len(data); i++ {
		if data[i] == b {
			return i
		}
	}
	return -1
}

// trimCR returns the length of the line ending at lineEnd (exclusive),
// excluding a trailing '\r' immediately before it. The newline byte itself
// is never included in the returned length.
func trimCR(data []byte, lineEnd int) int {
	if lineEnd > 0 && data[lineEnd-1] == '\r' {
		return lineEnd - 1
	}
	return lineEnd
}

func malformed(filename string, index int64, msg string) error {
	return fqerr.New(fqerr.MalformedRecord, fmt.Sprintf("record %d in %s: %s", index, filename, msg))
}
