package pipeline

import (
	"context"
	"path/filepath"

	"github.com/opengene/fqdemux/config"
	"github.com/opengene/fqdemux/demux"
	"github.com/opengene/fqdemux/queue"
)

// outputPath builds "<outFolder>/<stem>.R1.fastq[.gz]" (or R2), appending
// .gz only when compression is enabled — §6's "0 disables gzip... also
// requires suffix handling".
func outputPath(cfg *config.Config, stem string, read2 bool) string {
	suffix := "R1"
	if read2 {
		suffix = "R2"
	}
	name := stem + "." + suffix + ".fastq"
	if cfg.Compression > 0 {
		name += ".gz"
	}
	return filepath.Join(cfg.OutFolder, name)
}

// excisionSpan returns the (start, length) of the barcode within the
// sequence line for a writer handling the given read slot, or (0, 0) if
// this writer's barcode source never lives in the sequence (Illumina index
// modes) or this writer isn't the one holding the barcode-bearing read.
func excisionSpan(cfg *config.Config, forRead2, isUndetermined bool) (start, length int) {
	if isUndetermined {
		return 0, 0
	}
	switch cfg.BarcodePlace {
	case demux.AtRead1:
		if forRead2 {
			return 0, 0
		}
	case demux.AtRead2:
		if !forRead2 {
			return 0, 0
		}
	default:
		return 0, 0
	}
	return cfg.BarcodeStart, cfg.BarcodeLength
}

// newOutputWriter opens the Writer for one (sample-or-undetermined, read
// slot) output file.
func newOutputWriter(ctx context.Context, cfg *config.Config, stem string, read2, isUndetermined bool) (*Writer, error) {
	start, length := excisionSpan(cfg, read2, isUndetermined)
	return NewWriter(ctx, outputPath(cfg, stem, read2), cfg.WriterBufferSize, cfg.Compression, read2, isUndetermined, start, length)
}

// assignThreadConfigs round-robins outputs across W writer goroutines:
// output i is owned by writer i mod W.
func assignThreadConfigs(w int, queues []*queue.RecordQueue, writers []*Writer) []*ThreadConfig {
	tcs := make([]*ThreadConfig, w)
	for i := range tcs {
		tcs[i] = newThreadConfig()
	}
	for i := range queues {
		tcs[i%w].add(queues[i], writers[i])
	}
	return tcs
}
