package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/opengene/fqdemux/config"
	"github.com/opengene/fqdemux/demux"
	"github.com/opengene/fqdemux/queue"
	"v.io/x/lib/vlog"
)

// pairWaitInterval is how long the paired-end demuxer sleeps when one mate's
// queue has produced a record but the other hasn't yet.
const pairWaitInterval = time.Microsecond

// RunPE demultiplexes a paired-end run: two reader threads (one per mate)
// feed independent input queues, tracking each other's progress so neither
// drifts more than cfg.PEReadNumGapLimit records ahead; one demuxer thread
// pairs records by arrival order and classifies using DemuxPair; WriterCount()
// writer threads round-robin over the 2*(samples[+1]) output queues.
func RunPE(ctx context.Context, cfg *config.Config) error {
	errOnce := &errors.Once{}

	r1, closer1, err := openReader(ctx, cfg.In1, int(cfg.ReadBufferLimitBytes))
	if err != nil {
		return err
	}
	defer closer1.Close()
	r2, closer2, err := openReader(ctx, cfg.In2, int(cfg.ReadBufferLimitBytes))
	if err != nil {
		return err
	}
	defer closer2.Close()

	dm, err := demux.New(cfg.Samples, cfg.BarcodePlace, cfg.BarcodeStart, cfg.BarcodeLength, cfg.Mismatch)
	if err != nil {
		return err
	}

	out, err := buildOutputsPE(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeWriters(out.writers)

	w := cfg.WriterCount(len(out.queues))
	tcs := assignThreadConfigs(w, out.queues, out.writers)

	q1 := queue.NewRecordQueue()
	q2 := queue.NewRecordQueue()
	var n1, n2 int64

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readRecords(r1, q1, cfg.MemoryLimitBytes, &n1, func() bool {
			return atomic.LoadInt64(&n1)-atomic.LoadInt64(&n2) > cfg.PEReadNumGapLimit
		}, errOnce)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		readRecords(r2, q2, cfg.MemoryLimitBytes, &n2, func() bool {
			return atomic.LoadInt64(&n2)-atomic.LoadInt64(&n1) > cfg.PEReadNumGapLimit
		}, errOnce)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		demuxPE(q1, q2, dm, out, cfg.DiscardUndecoded, errOnce)
	}()

	for _, tc := range tcs {
		wg.Add(1)
		go func(tc *ThreadConfig) {
			defer wg.Done()
			tc.Run(errOnce)
		}(tc)
	}

	wg.Wait()
	log.Printf("paired-end demultiplexing complete")
	return errOnce.Err()
}

// peOutputs collects the flat queue/writer slices handed to
// assignThreadConfigs plus the per-sample index pairs demuxPE needs to route
// a classified pair to its two files.
type peOutputs struct {
	queues  []*queue.RecordQueue
	writers []*Writer

	r1ForSample []int // r1ForSample[sampleIdx] -> index into queues/writers
	r2ForSample []int

	undeterminedR1 int // -1 if undecoded reads are discarded
	undeterminedR2 int
}

func buildOutputsPE(ctx context.Context, cfg *config.Config) (*peOutputs, error) {
	n := len(cfg.Samples)
	hasUndetermined := !cfg.DiscardUndecoded && cfg.UndecodedFileStem != ""
	total := n * 2
	if hasUndetermined {
		total += 2
	}

	out := &peOutputs{
		queues:         make([]*queue.RecordQueue, total),
		writers:        make([]*Writer, total),
		r1ForSample:    make([]int, n),
		r2ForSample:    make([]int, n),
		undeterminedR1: -1,
		undeterminedR2: -1,
	}

	next := 0
	for i, s := range cfg.Samples {
		q1 := queue.NewRecordQueue()
		w1, err := newOutputWriter(ctx, cfg, s.FileStem, false, false)
		if err != nil {
			closeWriters(out.writers[:next])
			return nil, err
		}
		out.queues[next], out.writers[next] = q1, w1
		out.r1ForSample[i] = next
		next++

		q2 := queue.NewRecordQueue()
		w2, err := newOutputWriter(ctx, cfg, s.FileStem, true, false)
		if err != nil {
			closeWriters(out.writers[:next])
			return nil, err
		}
		out.queues[next], out.writers[next] = q2, w2
		out.r2ForSample[i] = next
		next++
	}
	if hasUndetermined {
		q1 := queue.NewRecordQueue()
		w1, err := newOutputWriter(ctx, cfg, cfg.UndecodedFileStem, false, true)
		if err != nil {
			closeWriters(out.writers[:next])
			return nil, err
		}
		out.queues[next], out.writers[next] = q1, w1
		out.undeterminedR1 = next
		next++

		q2 := queue.NewRecordQueue()
		w2, err := newOutputWriter(ctx, cfg, cfg.UndecodedFileStem, true, true)
		if err != nil {
			closeWriters(out.writers[:next])
			return nil, err
		}
		out.queues[next], out.writers[next] = q2, w2
		out.undeterminedR2 = next
		next++
	}
	return out, nil
}

// demuxPE pairs records from q1 and q2 in arrival order (the two readers
// advance independently but are kept within PEReadNumGapLimit of each other,
// so pairing by consumption order reconstructs the original read pairs) and
// classifies each pair with DemuxPair. It only consumes a pair once both
// queues have a record visible; if either queue's producer has finished and
// the queue is drained — read1/read2 turned out not to be paired
// one-to-one — it stops instead of spinning forever waiting for a mate that
// will never arrive.
func demuxPE(q1, q2 *queue.RecordQueue, dm *demux.Demuxer, out *peOutputs, discard bool, errOnce errorSetter) {
	for {
		if !q1.CanBeConsumed() {
			if q1.ProducerFinished() && !q1.CanBeConsumed() {
				break
			}
			time.Sleep(pairWaitInterval)
			continue
		}
		if !q2.CanBeConsumed() {
			if q2.ProducerFinished() && !q2.CanBeConsumed() {
				break
			}
			time.Sleep(pairWaitInterval)
			continue
		}

		// This goroutine is the sole consumer of both queues, so the
		// CanBeConsumed() checks above guarantee both Consume() calls
		// succeed.
		r1, ok1 := q1.Consume()
		r2, ok2 := q2.Consume()
		if !ok1 || !ok2 {
			if ok1 {
				r1.Release()
			}
			if ok2 {
				r2.Release()
			}
			continue
		}

		idx, err := dm.DemuxPair(r1, r2)
		if err != nil {
			errOnce.Set(err)
			vlog.Error(err)
			r1.Release()
			r2.Release()
			continue
		}
		if idx < 0 {
			if discard || out.undeterminedR1 < 0 {
				r1.Release()
				r2.Release()
				continue
			}
			out.queues[out.undeterminedR1].Produce(r1)
			out.queues[out.undeterminedR2].Produce(r2)
			continue
		}
		out.queues[out.r1ForSample[idx]].Produce(r1)
		out.queues[out.r2ForSample[idx]].Produce(r2)
	}
	for _, q := range out.queues {
		q.SetProducerFinished()
	}
}
