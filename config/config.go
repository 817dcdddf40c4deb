// Package config holds the validated external interface of the
// demultiplexer: everything a caller supplies about inputs, outputs, sample
// routing, and resource limits, plus the validation that must pass before
// any pipeline component is constructed.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/opengene/fqdemux/demux"
	"github.com/opengene/fqdemux/fqerr"
)

// Config is the fully-resolved set of options for one demultiplexing run.
// Callers build one (typically from CLI flags plus a parsed sample sheet)
// and call Validate before constructing a pipeline.
type Config struct {
	// In1/In2 are the input FASTQ paths. In2 is empty for single-end runs.
	In1, In2 string

	// Compression is the gzip level applied to output files, 0-12. 0 disables
	// gzip entirely: output filenames are not given a ".gz" suffix and are
	// written as plain text.
	Compression int

	// OutFolder is the directory output files are written into. It is
	// created if it does not already exist.
	OutFolder string

	// UndecodedFileStem names the file stem used for reads that fail to
	// classify against any sample. Empty means undecoded reads are
	// discarded.
	UndecodedFileStem string

	// Samples is the parsed sample sheet.
	Samples []demux.Sample

	// ThreadNum is the total OS thread budget for the run, including the
	// reader(s), demuxer, and writers. 0 requests an automatic choice.
	ThreadNum int

	// PairedEnd selects the two-input topology.
	PairedEnd bool

	// Mismatch is the barcode Hamming-distance tolerance: 0, 1, or 2.
	Mismatch int

	// BarcodePlace, BarcodeStart, and BarcodeLength describe where the
	// classifying barcode lives when it is not taken from the Illumina
	// index tokens in the read name.
	BarcodePlace  demux.Place
	BarcodeStart  int
	BarcodeLength int

	// WriterBufferSize is the per-writer output buffer size in bytes.
	// 0 requests the default.
	WriterBufferSize int

	// MemoryLimitBytes bounds simpleread.BytesInMemory() before readers
	// pause. 0 means unlimited: readers never pause for memory pressure.
	MemoryLimitBytes int64

	// ReadBufferLimitBytes is the per-reader input buffer size in bytes.
	// 0 requests the default (8MiB, matching the reference reader).
	ReadBufferLimitBytes int64

	// PEReadNumGapLimit bounds how far read1 and read2 counts may drift
	// apart before the faster reader pauses, in paired-end mode.
	PEReadNumGapLimit int64

	// IndexReverseComplement reverse-complements every barcode (index1 and
	// index2) read from a sample sheet before it is used.
	IndexReverseComplement bool

	// Debug enables verbose pipeline diagnostics.
	Debug bool

	// DiscardUndecoded drops undecoded reads instead of writing them to
	// UndecodedFileStem.
	DiscardUndecoded bool
}

const (
	defaultReadBufferLimitBytes = 8 << 20
	defaultWriterBufferSize     = 1 << 20
	defaultPEReadNumGapLimit    = 10000
	maxThreads                  = 128
	minThreadsSE                = 4
	minThreadsPE                = 5

	gigabyte         = 1 << 30
	minMemoryLimitGB = 1
	maxMemoryLimitGB = 10000
)

// Validate checks Config for internal consistency and fills in defaults for
// zero-valued optional fields. It returns an *fqerr.Error of kind
// fqerr.ConfigInvalid on any violation.
func (c *Config) Validate() error {
	if c.In1 == "" {
		return fqerr.New(fqerr.ConfigInvalid, "in1 is required")
	}
	if c.PairedEnd && c.In2 == "" {
		return fqerr.New(fqerr.ConfigInvalid, "pairedEnd requires in2")
	}
	if !c.PairedEnd && c.In2 != "" {
		return fqerr.New(fqerr.ConfigInvalid, "in2 supplied but pairedEnd is false")
	}
	if len(c.Samples) == 0 {
		return fqerr.New(fqerr.ConfigInvalid, "sample sheet is empty")
	}
	if c.Compression < 0 || c.Compression > 12 {
		return fqerr.New(fqerr.ConfigInvalid, "compression must be in [0, 12]", c.Compression)
	}
	if c.Mismatch < 0 || c.Mismatch > 2 {
		return fqerr.New(fqerr.ConfigInvalid, "mismatch must be 0, 1, or 2", c.Mismatch)
	}

	switch c.BarcodePlace {
	case demux.AtRead1, demux.AtRead2:
		if c.BarcodeLength <= 0 || c.BarcodeLength > demux.MaxBarcodeLength {
			return fqerr.New(fqerr.ConfigInvalid, "barcodeLength must be in (0, 30]", c.BarcodeLength)
		}
		if c.BarcodeStart < 0 {
			return fqerr.New(fqerr.ConfigInvalid, "barcodeStart must be non-negative", c.BarcodeStart)
		}
		if c.BarcodePlace == demux.AtRead2 && !c.PairedEnd {
			return fqerr.New(fqerr.ConfigInvalid, "barcodePlace=read2 requires pairedEnd")
		}
	case demux.AtIndex1, demux.AtIndex2, demux.AtBothIndex:
		// Barcode length/start come from the read name and carry no
		// separate validation here.
	default:
		return fqerr.New(fqerr.ConfigInvalid, "unrecognized barcodePlace", c.BarcodePlace)
	}

	if c.OutFolder == "" {
		return fqerr.New(fqerr.ConfigInvalid, "outFolder is required")
	}
	if err := os.MkdirAll(c.OutFolder, 0o755); err != nil {
		return fqerr.New(fqerr.ConfigInvalid, "cannot create outFolder", c.OutFolder, err)
	}
	if fi, err := os.Stat(filepath.Clean(c.OutFolder)); err != nil || !fi.IsDir() {
		return fqerr.New(fqerr.ConfigInvalid, "outFolder is not a directory", c.OutFolder)
	}

	if c.ThreadNum < 0 {
		return fqerr.New(fqerr.ConfigInvalid, "threadNum must be non-negative", c.ThreadNum)
	}
	if c.ThreadNum == 0 {
		c.ThreadNum = runtime.NumCPU()
		if c.ThreadNum < minThreadsPE {
			c.ThreadNum = minThreadsPE
		}
	} else {
		min := minThreadsSE
		if c.PairedEnd {
			min = minThreadsPE
		}
		if c.ThreadNum < min {
			return fqerr.New(fqerr.ConfigInvalid, "threadNum too low for topology", c.ThreadNum, min)
		}
	}
	if c.ThreadNum > maxThreads {
		c.ThreadNum = maxThreads
	}

	if c.ReadBufferLimitBytes <= 0 {
		c.ReadBufferLimitBytes = defaultReadBufferLimitBytes
	}
	if c.MemoryLimitBytes < 0 {
		return fqerr.New(fqerr.ConfigInvalid, "memoryLimitBytes must be non-negative", c.MemoryLimitBytes)
	}
	if c.MemoryLimitBytes > 0 {
		gb := c.MemoryLimitBytes / gigabyte
		if gb < minMemoryLimitGB || gb > maxMemoryLimitGB {
			return fqerr.New(fqerr.ConfigInvalid, "memoryLimitBytes must be 0 (unlimited) or within [1, 10000] GiB", c.MemoryLimitBytes)
		}
	}
	if c.WriterBufferSize <= 0 {
		c.WriterBufferSize = defaultWriterBufferSize
	}
	if c.PEReadNumGapLimit <= 0 {
		c.PEReadNumGapLimit = defaultPEReadNumGapLimit
	}

	seen := make(map[string]bool, len(c.Samples))
	for _, s := range c.Samples {
		if s.FileStem == "" {
			return fqerr.New(fqerr.ConfigInvalid, "sample has empty file stem")
		}
		if seen[s.FileStem] {
			return fqerr.New(fqerr.ConfigInvalid, "duplicate sample file stem", s.FileStem)
		}
		seen[s.FileStem] = true
	}

	return nil
}

// WriterCount returns the number of writer threads the pipeline should
// start, ThreadNum minus 3 regardless of topology (matching the reference
// implementation, which subtracts 3 unconditionally rather than accounting
// for SE's one fewer reader thread), clamped to [1, min(128, OutputCount)].
func (c *Config) WriterCount(outputCount int) int {
	w := c.ThreadNum - 3
	if w < 1 {
		w = 1
	}
	max := outputCount
	if max > maxThreads {
		max = maxThreads
	}
	if max < 1 {
		max = 1
	}
	if w > max {
		w = max
	}
	return w
}
