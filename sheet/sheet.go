// Package sheet parses the sample sheet that maps each output file stem to
// its barcode(s): CSV/TSV (filename, index1[, index2]) or FASTA (sequence
// identifier as filename, sequence as index1). It is a thin ambient layer
// over the demultiplexing core — the core only ever sees a []demux.Sample.
package sheet

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/opengene/fqdemux/demux"
	"github.com/opengene/fqdemux/fqerr"
	"github.com/opengene/fqdemux/nucleotide"
	"github.com/pkg/errors"
)

// Parse reads a sample sheet from data, auto-detecting its format: FASTA if
// the first non-blank byte is '>', otherwise CSV or TSV depending on
// whichever of ',' or '\t' appears first on the first non-comment line that
// contains either.
// When reverseComplement is set, every parsed barcode (index1 and index2)
// is substituted with its reverse complement before the Sample is built.
func Parse(data []byte, reverseComplement bool) ([]demux.Sample, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '>' {
		return parseFASTA(data, reverseComplement)
	}
	return parseDelimited(data, reverseComplement)
}

func parseDelimited(data []byte, reverseComplement bool) ([]demux.Sample, error) {
	sep, err := detectSeparator(data)
	if err != nil {
		return nil, err
	}

	var samples []demux.Sample
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, sep)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) < 2 {
			return nil, fqerr.New(fqerr.ConfigInvalid, "sample sheet line has fewer than 2 columns", lineNo)
		}
		s := demux.Sample{FileStem: fields[0], Index1: fields[1]}
		if len(fields) >= 3 && fields[2] != "" {
			s.Index2 = fields[2]
		}
		applyReverseComplement(&s, reverseComplement)
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fqerr.New(fqerr.ConfigInvalid, errors.Wrap(err, "scanning sample sheet"))
	}
	return samples, nil
}

// detectSeparator picks ',' or '\t' by whichever occurs first across the
// sheet's non-comment lines.
func detectSeparator(data []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commaIdx := strings.IndexByte(line, ',')
		tabIdx := strings.IndexByte(line, '\t')
		switch {
		case commaIdx < 0 && tabIdx < 0:
			continue
		case tabIdx < 0 || (commaIdx >= 0 && commaIdx < tabIdx):
			return ",", nil
		default:
			return "\t", nil
		}
	}
	return "", fqerr.New(fqerr.ConfigInvalid, "sample sheet contains no delimited data")
}

// parseFASTA reads a FASTA-formatted sheet: each record's identifier (the
// token right after '>', up to the first space) becomes FileStem, and its
// sequence (concatenated across wrapped lines) becomes Index1.
func parseFASTA(data []byte, reverseComplement bool) ([]demux.Sample, error) {
	var (
		samples []demux.Sample
		cur     *demux.Sample
		seq     strings.Builder
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.Index1 = seq.String()
		applyReverseComplement(cur, reverseComplement)
		samples = append(samples, *cur)
		cur, seq = nil, strings.Builder{}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if line[0] == '>' {
			flush()
			name := strings.TrimPrefix(line, ">")
			if idx := strings.IndexByte(name, ' '); idx >= 0 {
				name = name[:idx]
			}
			cur = &demux.Sample{FileStem: name}
			continue
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fqerr.New(fqerr.ConfigInvalid, errors.Wrap(err, "scanning FASTA sample sheet"))
	}
	flush()
	return samples, nil
}

func applyReverseComplement(s *demux.Sample, enabled bool) {
	if !enabled {
		return
	}
	s.Index1 = reverseComplement(s.Index1)
	if s.Index2 != "" {
		s.Index2 = reverseComplement(s.Index2)
	}
}

// reverseComplement reverse-complements a nucleotide string via
// nucleotide.ReverseComp8Inplace.
func reverseComplement(seq string) string {
	b := []byte(seq)
	nucleotide.ReverseComp8Inplace(b)
	return string(b)
}
