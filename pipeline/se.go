package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/opengene/fqdemux/config"
	"github.com/opengene/fqdemux/demux"
	"github.com/opengene/fqdemux/queue"
	"v.io/x/lib/vlog"
)

// demuxIdleInterval is how long the demuxer goroutine sleeps when its input
// queue is empty but not yet finished.
const demuxIdleInterval = time.Microsecond

// RunSE demultiplexes a single-end run: one reader thread feeds input_q, one
// demuxer thread classifies and fans records out to one queue per sample
// (plus an optional undetermined sink), and WriterCount() writer threads
// round-robin over those queues via ThreadConfig.
func RunSE(ctx context.Context, cfg *config.Config) error {
	errOnce := &errors.Once{}

	r, closer, err := openReader(ctx, cfg.In1, int(cfg.ReadBufferLimitBytes))
	if err != nil {
		return err
	}
	defer closer.Close()

	dm, err := demux.New(cfg.Samples, cfg.BarcodePlace, cfg.BarcodeStart, cfg.BarcodeLength, cfg.Mismatch)
	if err != nil {
		return err
	}

	outQueues, writers, undetermined, err := buildOutputsSE(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeWriters(writers)

	w := cfg.WriterCount(len(outQueues))
	tcs := assignThreadConfigs(w, outQueues, writers)

	inputQ := queue.NewRecordQueue()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readRecords(r, inputQ, cfg.MemoryLimitBytes, nil, nil, errOnce)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		demuxSE(inputQ, outQueues, dm, undetermined, cfg.DiscardUndecoded, errOnce)
	}()

	for _, tc := range tcs {
		wg.Add(1)
		go func(tc *ThreadConfig) {
			defer wg.Done()
			tc.Run(errOnce)
		}(tc)
	}

	wg.Wait()
	log.Printf("single-end demultiplexing complete")
	return errOnce.Err()
}

// demuxSE drains inputQ, classifying each record and handing it to the
// matching output queue (or releasing it if undetermined and discarding).
// It closes out all output queues' producer side once inputQ is exhausted
// and its reader has finished.
func demuxSE(inputQ *queue.RecordQueue, outQueues []*queue.RecordQueue, dm *demux.Demuxer, undetermined int, discard bool, errOnce errorSetter) {
	for {
		r, ok := inputQ.Consume()
		if !ok {
			// Re-check for a record produced between the failed Consume and
			// the producer latching finished.
			if inputQ.ProducerFinished() && !inputQ.CanBeConsumed() {
				break
			}
			time.Sleep(demuxIdleInterval)
			continue
		}
		idx, err := dm.Demux(r)
		if err != nil {
			errOnce.Set(err)
			vlog.Error(err)
			r.Release()
			continue
		}
		if idx < 0 {
			idx = undetermined
		}
		if idx < 0 {
			r.Release()
			continue
		}
		outQueues[idx].Produce(r)
	}
	for _, q := range outQueues {
		q.SetProducerFinished()
	}
}

// buildOutputsSE creates one (queue, Writer) pair per sample's single output
// file, plus an undetermined sink if the config asks for one. undetermined
// is the index of that sink's entry in the returned slices, or -1 if there
// is none.
func buildOutputsSE(ctx context.Context, cfg *config.Config) ([]*queue.RecordQueue, []*Writer, int, error) {
	n := len(cfg.Samples)
	undetermined := -1
	if !cfg.DiscardUndecoded && cfg.UndecodedFileStem != "" {
		undetermined = n
		n++
	}

	queues := make([]*queue.RecordQueue, n)
	writers := make([]*Writer, n)
	for i, s := range cfg.Samples {
		q := queue.NewRecordQueue()
		w, err := newOutputWriter(ctx, cfg, s.FileStem, false, false)
		if err != nil {
			closeWriters(writers[:i])
			return nil, nil, 0, err
		}
		queues[i] = q
		writers[i] = w
	}
	if undetermined >= 0 {
		q := queue.NewRecordQueue()
		w, err := newOutputWriter(ctx, cfg, cfg.UndecodedFileStem, false, true)
		if err != nil {
			closeWriters(writers[:n-1])
			return nil, nil, 0, err
		}
		queues[undetermined] = q
		writers[undetermined] = w
	}
	return queues, writers, undetermined, nil
}

func closeWriters(writers []*Writer) {
	for _, w := range writers {
		if w != nil {
			w.Close()
		}
	}
}
