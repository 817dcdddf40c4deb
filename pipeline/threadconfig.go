package pipeline

import (
	"time"

	"github.com/grailbio/base/errors"
	"github.com/opengene/fqdemux/queue"
	"github.com/opengene/fqdemux/simpleread"
	"v.io/x/lib/vlog"
)

// binding pairs one output queue with the Writer that drains it.
type binding struct {
	q *queue.RecordQueue
	w *Writer
}

// ThreadConfig is one writer thread's assignment: the ordered set of
// (queue, Writer) pairs it round-robins over. Each queue is owned by
// exactly one ThreadConfig, matching the single-consumer precondition the
// SPSC queue requires.
type ThreadConfig struct {
	bindings []binding
}

func newThreadConfig() *ThreadConfig {
	return &ThreadConfig{}
}

func (tc *ThreadConfig) add(q *queue.RecordQueue, w *Writer) {
	tc.bindings = append(tc.bindings, binding{q: q, w: w})
}

// Run drains every queue in tc until all of them report their producer
// finished and empty, then closes the writers. errOnce records the first
// fatal error from any writer; no pipeline stage reads it while the run is
// in progress, so the readers and the demuxer are not stopped by it. Run
// keeps draining (to release queued records) rather than abort partway,
// since that would leak records and leave the queues' consumer side
// orphaned.
func (tc *ThreadConfig) Run(errOnce *errors.Once) {
	for {
		if !tc.drainOnce(errOnce) {
			if tc.isInputCompleted() {
				tc.drainOnce(errOnce) // re-check: per-queue observation isn't atomic.
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
	for _, b := range tc.bindings {
		if err := b.w.Close(); err != nil {
			errOnce.Set(err)
			vlog.Error(err)
		}
		b.q.SetConsumerFinished()
	}
}

// drainOnce makes one pass over every bound queue, writing whatever is
// currently available. It reports whether anything was written.
func (tc *ThreadConfig) drainOnce(errOnce *errors.Once) bool {
	did := false
	for _, b := range tc.bindings {
		for {
			r, ok := b.q.Consume()
			if !ok {
				break
			}
			did = true
			if err := b.w.WriteRead(r); err != nil {
				errOnce.Set(err)
				vlog.Error(err)
			}
			r.Release()
		}
	}
	return did
}

func (tc *ThreadConfig) isInputCompleted() bool {
	for _, b := range tc.bindings {
		if !b.q.ProducerFinished() || b.q.CanBeConsumed() {
			return false
		}
	}
	return true
}
