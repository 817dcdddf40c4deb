// Package fqerr defines the fatal error taxonomy used across the
// demultiplexing pipeline. Every kind here is terminal: the process that
// detects one logs a single diagnostic and exits non-zero. There is no
// retry and no structured recovery, because partial demultiplexed output is
// considered worse than no output.
package fqerr

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Kind classifies a fatal error for diagnostics and for tests that assert on
// failure mode rather than message text.
type Kind int

const (
	// ConfigInvalid covers missing inputs, out-of-range parameters, barcode
	// length or alphabet violations, and output paths that cannot be
	// prepared.
	ConfigInvalid Kind = iota + 1
	// InputIOFailed covers input files that cannot be opened, or a read
	// error mid-stream.
	InputIOFailed
	// CorruptGzip covers an invalid gzip header or an inflate error.
	CorruptGzip
	// MalformedRecord covers a FASTQ record that does not start with '@', or
	// that has fewer than three newlines before true EOF.
	MalformedRecord
	// OutputIOFailed covers output files that cannot be opened, written, or
	// flushed, and compressor allocation failure.
	OutputIOFailed
	// IndexUnavailable covers an Illumina index lookup requested on a read
	// whose name line lacks the required ':' / '+' tokens.
	IndexUnavailable
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "ConfigInvalid"
	case InputIOFailed:
		return "InputIOFailed"
	case CorruptGzip:
		return "CorruptGzip"
	case MalformedRecord:
		return "MalformedRecord"
	case OutputIOFailed:
		return "OutputIOFailed"
	case IndexUnavailable:
		return "IndexUnavailable"
	default:
		return "Unknown"
	}
}

// Error is a fqerr.Kind-tagged error. The wrapped cause, when present, is
// preserved via github.com/grailbio/base/errors.E so that %+v formatting and
// any upstream errors.Once aggregation still see the original error chain.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a fqerr.Error of the given kind. args are formatted exactly as
// github.com/grailbio/base/errors.E formats them (an error, strings, and
// path-like values all compose into one annotated cause).
func New(kind Kind, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.E(args...)}
}

// Is reports whether err is a fqerr.Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
