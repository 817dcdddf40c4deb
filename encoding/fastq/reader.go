package fastq

import (
	"bufio"
	"context"
	"hash/crc32"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/flate"
	"github.com/opengene/fqdemux/fqerr"
	"github.com/opengene/fqdemux/simpleread"
)

// defaultReadBufSize is the size of a Reader's own scan buffer (B in the
// design: one input buffer, scanned forward for four newlines per record).
const defaultReadBufSize = 8 << 20

// gzipInputBufSize is the size of the private input buffer a gzip-backed
// Reader reads raw compressed bytes into before inflating (Bi).
const gzipInputBufSize = 4 << 20

// Reader pulls bytes from a plain or gzip-compressed FASTQ file and slices
// them into simpleread.Record blobs. It is single-threaded: not safe to
// share across goroutines.
type Reader struct {
	src      io.Reader
	filename string

	buf      []byte
	pos, end int

	assembling []byte
	nlCount    int

	srcEOF bool
	srcErr error

	recordIdx   int64
	droppedTail int64
}

// NewReader wraps src (already positioned at the start of FASTQ text, or a
// gzip-decoding io.Reader over one) in a Reader with its own scan buffer of
// bufSize bytes (0 selects the default, 8MiB).
func NewReader(src io.Reader, filename string, bufSize int) *Reader {
	if bufSize <= 0 {
		bufSize = defaultReadBufSize
	}
	return &Reader{src: src, filename: filename, buf: make([]byte, bufSize)}
}

// Open resolves path to a byte source — stdin for "-", otherwise a file
// opened through github.com/grailbio/base/file — transparently unwrapping
// gzip for paths ending in ".gz", and returns a Reader plus a Closer for
// the underlying handle.
func Open(ctx context.Context, path string, bufSize int) (*Reader, io.Closer, error) {
	var (
		rc     io.Reader
		closer io.Closer
	)
	if path == "-" {
		rc, closer = os.Stdin, os.Stdin
	} else {
		f, err := file.Open(ctx, path)
		if err != nil {
			return nil, nil, fqerr.New(fqerr.InputIOFailed, "open", path, err)
		}
		rc, closer = f.Reader(ctx), fileCloser{ctx: ctx, f: f}
	}
	if strings.HasSuffix(path, ".gz") {
		rc = newGzipReader(rc)
	}
	return NewReader(rc, path, bufSize), closer, nil
}

type fileCloser struct {
	ctx context.Context
	f   file.File
}

func (c fileCloser) Close() error { return c.f.Close(c.ctx) }

// refill pulls one more chunk from src into buf, rewinding the cursor to
// zero. It returns false once src is exhausted (or failed); subsequent
// calls are idempotent.
func (r *Reader) refill() bool {
	if r.srcEOF {
		return false
	}
	for {
		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pos, r.end = 0, n
			if err != nil && err != io.EOF {
				r.srcErr = err
			}
			if err == io.EOF {
				r.srcEOF = true
			}
			return true
		}
		if err == nil {
			continue
		}
		r.srcEOF = true
		if err != io.EOF {
			r.srcErr = err
		}
		return false
	}
}

// scanRecordEnd looks for the 4 newlines that terminate one FASTQ record
// within data, counting onward from startCount newlines already seen in
// prior buffer fills. If atEOF is true and no 4th newline will ever arrive
// but a 3rd has been seen, the record is considered complete at len(data):
// this is the final record of a file with no terminal newline.
func scanRecordEnd(data []byte, startCount int, atEOF bool) (end, nlSeen int, ok bool) {
	nl := startCount
	for i, b := range data {
		if b == '\n' {
			nl++
			if nl == 4 {
				return i + 1, nl, true
			}
		}
	}
	if atEOF && nl == 3 {
		return len(data), nl, true
	}
	return 0, nl, false
}

// Next returns the next record, or io.EOF once the source is exhausted. A
// malformed leading byte is fatal (fqerr.MalformedRecord); a trailing
// partial record (fewer than three newlines before true EOF) is dropped
// silently and Next returns io.EOF, per the reference reader's error
// policy.
func (r *Reader) Next() (*simpleread.Record, error) {
	for {
		window := r.buf[r.pos:r.end]
		end, nl, ok := scanRecordEnd(window, r.nlCount, r.srcEOF)
		if ok {
			data := r.finishRecord(window[:end])
			r.pos += end
			r.nlCount = 0
			r.recordIdx++
			return simpleread.New(data, r.filename, r.recordIdx)
		}
		r.nlCount = nl
		if r.srcEOF {
			if len(r.assembling) > 0 || len(window) > 0 {
				r.droppedTail++
			}
			r.assembling = nil
			r.nlCount = 0
			r.pos = r.end
			if r.srcErr != nil {
				return nil, fqerr.New(fqerr.InputIOFailed, r.filename, r.srcErr)
			}
			return nil, io.EOF
		}
		r.assembling = append(r.assembling, window...)
		r.pos = r.end
		r.refill()
	}
}

func (r *Reader) finishRecord(tail []byte) []byte {
	if len(r.assembling) == 0 {
		return append([]byte(nil), tail...)
	}
	data := append(r.assembling, tail...)
	r.assembling = nil
	return data
}

// gzipReader decodes a (possibly concatenated, multi-member) gzip stream
// using klauspost/compress/flate directly rather than klauspost/compress/
// gzip's own Reader, so member boundaries are explicit: each time the
// current member's DEFLATE stream ends, its CRC32/ISIZE trailer is
// validated and a fresh header is parsed before inflation resumes. This
// gives the FASTQ Reader above exact control over refill granularity
// instead of delegating boundary handling to a black-box multistream
// reader.
type gzipReader struct {
	br    *bufio.Reader
	flate io.ReadCloser
	crc   uint32
	size  uint32
	open  bool
}

func newGzipReader(src io.Reader) *gzipReader {
	return &gzipReader{br: bufio.NewReaderSize(src, gzipInputBufSize)}
}

// flateResetter matches compress/flate.Resetter (and klauspost/compress/
// flate's equivalent): reusing one flate.Reader across members avoids
// reallocating its Huffman tables for every gzip member.
type flateResetter interface {
	Reset(r io.Reader, dict []byte) error
}

func (g *gzipReader) Read(p []byte) (int, error) {
	for {
		if !g.open {
			if err := g.openMember(); err != nil {
				return 0, err
			}
		}
		n, err := g.flate.Read(p)
		if n > 0 {
			g.crc = crc32.Update(g.crc, crc32.IEEETable, p[:n])
			g.size += uint32(n)
			return n, nil
		}
		if err == io.EOF {
			if cerr := g.closeMember(); cerr != nil {
				return 0, cerr
			}
			g.open = false
			continue
		}
		if err != nil {
			return 0, fqerr.New(fqerr.CorruptGzip, err)
		}
	}
}

func (g *gzipReader) openMember() error {
	var hdr [10]byte
	n, err := io.ReadFull(g.br, hdr[:])
	if err != nil {
		if n == 0 {
			return io.EOF // clean end of the concatenated stream
		}
		return fqerr.New(fqerr.CorruptGzip, "truncated gzip header", err)
	}
	if hdr[0] != 0x1f || hdr[1] != 0x8b {
		return fqerr.New(fqerr.CorruptGzip, "bad gzip magic")
	}
	if hdr[2] != 8 {
		return fqerr.New(fqerr.CorruptGzip, "unsupported gzip compression method")
	}
	flg := hdr[3]
	if flg&0x04 != 0 { // FEXTRA
		var xlenB [2]byte
		if _, err := io.ReadFull(g.br, xlenB[:]); err != nil {
			return fqerr.New(fqerr.CorruptGzip, err)
		}
		xlen := int64(xlenB[0]) | int64(xlenB[1])<<8
		if _, err := io.CopyN(ioutil.Discard, g.br, xlen); err != nil {
			return fqerr.New(fqerr.CorruptGzip, err)
		}
	}
	if flg&0x08 != 0 { // FNAME
		if err := skipCString(g.br); err != nil {
			return fqerr.New(fqerr.CorruptGzip, err)
		}
	}
	if flg&0x10 != 0 { // FCOMMENT
		if err := skipCString(g.br); err != nil {
			return fqerr.New(fqerr.CorruptGzip, err)
		}
	}
	if flg&0x02 != 0 { // FHCRC
		var hcrc [2]byte
		if _, err := io.ReadFull(g.br, hcrc[:]); err != nil {
			return fqerr.New(fqerr.CorruptGzip, err)
		}
	}

	g.crc, g.size = 0, 0
	if g.flate == nil {
		g.flate = flate.NewReader(g.br)
	} else if rs, ok := g.flate.(flateResetter); ok {
		if err := rs.Reset(g.br, nil); err != nil {
			return fqerr.New(fqerr.CorruptGzip, err)
		}
	} else {
		g.flate = flate.NewReader(g.br)
	}
	g.open = true
	return nil
}

func (g *gzipReader) closeMember() error {
	var trailer [8]byte
	if _, err := io.ReadFull(g.br, trailer[:]); err != nil {
		return fqerr.New(fqerr.CorruptGzip, "truncated gzip trailer", err)
	}
	wantCRC := le32(trailer[0:4])
	wantSize := le32(trailer[4:8])
	if wantCRC != g.crc {
		return fqerr.New(fqerr.CorruptGzip, "gzip CRC32 mismatch")
	}
	if wantSize != g.size {
		return fqerr.New(fqerr.CorruptGzip, "gzip ISIZE mismatch")
	}
	return nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func skipCString(br *bufio.Reader) error {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		if b == 0 {
			return nil
		}
	}
}
