// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
fqdemux splits one or two FASTQ files into per-sample output files according
to a barcode sample sheet, tolerating a configurable number of barcode
mismatches.
*/

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/opengene/fqdemux/config"
	"github.com/opengene/fqdemux/demux"
	"github.com/opengene/fqdemux/pipeline"
	"github.com/opengene/fqdemux/sheet"
)

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

var (
	in1                = flag.String("in1", "", "Read1 FASTQ path (required). '-' reads stdin. A .gz suffix is decompressed")
	in2                = flag.String("in2", "", "Read2 FASTQ path; supplying this enables paired-end mode")
	barcodePlace       = flag.String("barcode-place", "index1", "read1 | read2 | index1 | index2 | both_index")
	barcodeStart       = flag.Int("barcode-start", 1, "1-based start of the barcode within the read (read1/read2 mode only)")
	barcodeLength      = flag.Int("barcode-length", 0, "Barcode length in bp; must be <= 30")
	indexPath          = flag.String("index", "", "Sample sheet path (required)")
	reverseComplement  = flag.Bool("reverse-complement", false, "Reverse-complement every parsed barcode")
	outFolder          = flag.String("out-folder", ".", "Output directory; created if absent")
	undecoded          = flag.String("undecoded", "", "Basename for undecoded output; empty plus -discard-undecoded discards them")
	discardUndecoded   = flag.Bool("discard-undecoded", false, "Drop reads that match no sample instead of writing -undecoded")
	compression        = flag.Int("compression", 4, "gzip level for output files, 0-12; 0 disables gzip on output")
	allowedMismatch    = flag.Int("allowed-mismatch", 1, "Barcode Hamming-distance tolerance: 0, 1, or 2")
	threadNum          = flag.Int("thread", 0, "Total threads; >= 4 SE, >= 5 PE; 0 picks max(5, runtime.NumCPU())")
	memoryGB           = flag.Int64("memory", 0, "Soft GiB cap on in-flight record bytes; 1..10000; 0 = unlimited")
	writerBufferSize   = flag.Int("writer-buffer-bytes", 0, "Per-writer output buffer size in bytes. 0 picks the default")
	readBufferBytes    = flag.Int64("read-buffer-bytes", 0, "Per-reader input buffer size in bytes. 0 picks the default")
	peGapLimit         = flag.Int64("pe-gap-limit", 0, "Paired-end: how far read1/read2 record counts may drift before the faster reader pauses. 0 picks the default")
	debug              = flag.Bool("debug", false, "Enable verbose pipeline diagnostics")
)

func usage() {
	fmt.Printf("Usage: %s -in1 <path> -index <sample-sheet> -out-folder <dir> [OPTIONS]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func parsePlace(s string) (demux.Place, error) {
	switch s {
	case "read1":
		return demux.AtRead1, nil
	case "read2":
		return demux.AtRead2, nil
	case "index1":
		return demux.AtIndex1, nil
	case "index2":
		return demux.AtIndex2, nil
	case "both_index":
		return demux.AtBothIndex, nil
	default:
		return 0, fmt.Errorf("unrecognized -barcode-place %q", s)
	}
}

// watchSignals logs a clean diagnostic on SIGINT/SIGTERM before the process
// terminates; the pipeline itself makes no attempt at a graceful drain.
func watchSignals() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-c
		log.Printf("received %v, exiting without draining in-flight records", sig)
		os.Exit(1)
	}()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()
	watchSignals()

	if *in1 == "" || *indexPath == "" {
		log.Fatalf("-in1 and -index are required")
	}
	place, err := parsePlace(*barcodePlace)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := vcontext.Background()

	sheetData, err := file.ReadFile(ctx, *indexPath)
	if err != nil {
		log.Fatalf("reading sample sheet %s: %v", *indexPath, err)
	}
	samples, err := sheet.Parse(sheetData, *reverseComplement)
	if err != nil {
		log.Fatalf("parsing sample sheet %s: %v", *indexPath, err)
	}

	cfg := &config.Config{
		In1:                    *in1,
		In2:                    *in2,
		Compression:            *compression,
		OutFolder:              *outFolder,
		UndecodedFileStem:      *undecoded,
		Samples:                samples,
		ThreadNum:              *threadNum,
		PairedEnd:              *in2 != "",
		Mismatch:               *allowedMismatch,
		BarcodePlace:           place,
		BarcodeStart:           *barcodeStart - 1,
		BarcodeLength:          *barcodeLength,
		WriterBufferSize:       *writerBufferSize,
		MemoryLimitBytes:       *memoryGB * (1 << 30),
		ReadBufferLimitBytes:   *readBufferBytes,
		PEReadNumGapLimit:      *peGapLimit,
		IndexReverseComplement: *reverseComplement,
		Debug:                  *debug,
		DiscardUndecoded:       *discardUndecoded,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	if cfg.PairedEnd {
		err = pipeline.RunPE(ctx, cfg)
	} else {
		err = pipeline.RunSE(ctx, cfg)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
