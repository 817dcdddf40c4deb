package pipeline

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/opengene/fqdemux/encoding/fastq"
	"github.com/opengene/fqdemux/fqerr"
	"github.com/opengene/fqdemux/queue"
	"github.com/opengene/fqdemux/simpleread"
	"v.io/x/lib/vlog"
)

// memoryPauseInterval is how long a reader sleeps when bytes_in_memory
// exceeds the configured limit, per the design's cooperative-sleep
// backpressure model.
const memoryPauseInterval = time.Second

// gapPauseInterval is how long the faster of two paired-end readers sleeps
// when it has pulled more records than its partner by more than the
// configured gap limit.
const gapPauseInterval = 100 * time.Millisecond

// readRecords drives a fastq.Reader to completion, producing every record
// onto q. counter, if non-nil, is incremented once per record and is how a
// paired-end run measures reader skew. gapAhead, if non-nil, is consulted
// before each read; the reader sleeps while it reports true, implementing
// the pe_gap_limit backpressure rule. memoryLimitBytes bounds
// simpleread.BytesInMemory() the same way for both topologies.
func readRecords(r *fastq.Reader, q *queue.RecordQueue, memoryLimitBytes int64, counter *int64, gapAhead func() bool, errOnce errorSetter) {
	for {
		for memoryLimitBytes > 0 && simpleread.BytesInMemory() > memoryLimitBytes {
			time.Sleep(memoryPauseInterval)
		}
		for gapAhead != nil && gapAhead() {
			time.Sleep(gapPauseInterval)
		}
		rec, err := r.Next()
		if err != nil {
			if err != io.EOF {
				errOnce.Set(err)
				vlog.Error(err)
			}
			q.SetProducerFinished()
			return
		}
		q.Produce(rec)
		if counter != nil {
			atomic.AddInt64(counter, 1)
		}
	}
}

// errorSetter is the minimal interface readRecords/demuxer goroutines need
// from the shared first-error aggregator, satisfied by
// *github.com/grailbio/base/errors.Once.
type errorSetter interface {
	Set(err error)
}

// openReader resolves path into a fastq.Reader plus a closer, wrapping any
// open failure as fqerr.InputIOFailed.
func openReader(ctx context.Context, path string, bufSize int) (*fastq.Reader, io.Closer, error) {
	r, closer, err := fastq.Open(ctx, path, bufSize)
	if err != nil {
		return nil, nil, fqerr.New(fqerr.InputIOFailed, path, err)
	}
	return r, closer, nil
}
