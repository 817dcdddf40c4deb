// Package pipeline assembles the concurrent reader/demuxer/writer stages
// described for the demultiplexer: a Writer per output file, a ThreadConfig
// that lets one writer goroutine own several (queue, Writer) pairs, and the
// single-end and paired-end topologies that wire readers, a Demuxer, and
// writer goroutines together through queue.RecordQueue.
package pipeline

import (
	"context"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
	"github.com/opengene/fqdemux/fqerr"
	"github.com/opengene/fqdemux/simpleread"
)

// Writer buffers and writes one output FASTQ file, gzip-compressing each
// flush as an independent member when the path ends in ".gz". bcLen <= 0
// disables barcode excision for this writer (the undetermined sink, any
// writer not holding the barcode-bearing read, or any Illumina-index
// barcode source, per the splice policy in the design).
type Writer struct {
	ctx  context.Context
	path string
	fh   file.File
	w    ioWriter

	buf  []byte
	gzip bool

	level          int
	isRead2        bool
	isUndetermined bool

	bcStart, bcLen int
}

// ioWriter is the subset of io.Writer the underlying file handle exposes;
// named so Writer doesn't need to import io solely for this.
type ioWriter interface {
	Write(p []byte) (int, error)
}

// NewWriter creates (or truncates) the output file at path and returns a
// Writer that buffers up to bufSize bytes before flushing. level is the
// gzip compression level (0-12, per the configured range) applied when path
// ends in ".gz"; klauspost/compress/gzip tops out at 9, so levels above that
// are clamped. bcStart/bcLen locate the barcode within the sequence line for
// writers that must excise it; pass bcLen <= 0 for writers that never excise.
func NewWriter(ctx context.Context, path string, bufSize, level int, isRead2, isUndetermined bool, bcStart, bcLen int) (*Writer, error) {
	if level > gzip.BestCompression {
		level = gzip.BestCompression
	}
	fh, err := file.Create(ctx, path)
	if err != nil {
		return nil, fqerr.New(fqerr.OutputIOFailed, "create", path, err)
	}
	return &Writer{
		ctx:            ctx,
		path:           path,
		fh:             fh,
		w:              fh.Writer(ctx),
		buf:            make([]byte, 0, bufSize),
		gzip:           strings.HasSuffix(path, ".gz"),
		level:          level,
		isRead2:        isRead2,
		isUndetermined: isUndetermined,
		bcStart:        bcStart,
		bcLen:          bcLen,
	}, nil
}

// WriteRead appends r's (possibly excised) bytes to the write buffer,
// flushing first if they would not fit, and writing directly if they are
// too large to ever fit in an empty buffer.
func (w *Writer) WriteRead(r *simpleread.Record) error {
	out := r.Data
	if w.bcLen > 0 {
		out = w.excise(r)
	}
	if len(w.buf)+len(out) > cap(w.buf) {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	if len(out) > cap(w.buf) {
		return w.writeMember(out)
	}
	w.buf = append(w.buf, out...)
	return nil
}

// excise splices the barcode out of the sequence and quality lines,
// reassembling the three surrounding byte ranges verbatim. If the
// effective cut length (bounded by how much sequence remains from
// bcStart) is non-positive, the record is returned unmodified.
func (w *Writer) excise(r *simpleread.Record) []byte {
	cut := w.bcLen
	if remain := r.SeqLen - w.bcStart; remain < cut {
		cut = remain
	}
	if cut <= 0 {
		return r.Data
	}
	out := make([]byte, 0, len(r.Data)-cut-cut)
	out = append(out, r.Data[:r.SeqStart+w.bcStart]...)
	out = append(out, r.Data[r.SeqStart+w.bcStart+cut:r.QualStart+w.bcStart]...)
	out = append(out, r.Data[r.QualStart+w.bcStart+cut:]...)
	return out
}

// Flush writes the current buffer contents to the file (as one independent
// gzip member if compressing) and resets the buffer.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.writeMember(w.buf); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	return nil
}

func (w *Writer) writeMember(data []byte) error {
	if !w.gzip {
		if _, err := w.w.Write(data); err != nil {
			return fqerr.New(fqerr.OutputIOFailed, "write", w.path, err)
		}
		return nil
	}
	gw, err := gzip.NewWriterLevel(w.w, w.level)
	if err != nil {
		return fqerr.New(fqerr.OutputIOFailed, "allocate gzip writer", w.path, err)
	}
	if _, err := gw.Write(data); err != nil {
		return fqerr.New(fqerr.OutputIOFailed, "write", w.path, err)
	}
	if err := gw.Close(); err != nil {
		return fqerr.New(fqerr.OutputIOFailed, "close gzip member", w.path, err)
	}
	return nil
}

// Close flushes any remaining buffered bytes and closes the underlying
// file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if err := w.fh.Close(w.ctx); err != nil {
		return fqerr.New(fqerr.OutputIOFailed, "close", w.path, err)
	}
	return nil
}
