// Package queue adapts code.hybscloud.com/lfq's generic lock-free SPSC ring
// buffer to the pipeline's record-blob contract: a single producer, a single
// consumer, ownership-transferring Produce/Consume, and two latching
// completion flags the library itself has no notion of.
package queue

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/lfq"
	"github.com/opengene/fqdemux/simpleread"
)

// defaultCapacity is the size of the bounded fast-path ring. It is rounded
// up to a power of two by lfq.NewSPSCPtr. Sizing it in the thousands keeps
// the common case (consumer keeping pace with producer) entirely on the
// wait-free path; the overflow ring below absorbs bursts without forcing
// the producer to block: Produce must never block.
const defaultCapacity = 4096

// RecordQueue is a single-producer/single-consumer queue of *simpleread.Record
// handles. Produce never blocks: when the underlying lfq.SPSCPtr ring is
// full, items spill into an unbounded overflow ring that is drained in FIFO
// order after the lock-free ring, so overall ordering is preserved.
type RecordQueue struct {
	fast *lfq.SPSCPtr

	overflowMu   chan struct{} // 1-buffered mutex, cheap and avoids sync.Mutex import duplication
	overflow     []*simpleread.Record
	overflowHead int

	// pending counts items produced but not yet consumed. The producer
	// increments it after a successful Produce; the consumer decrements it
	// after a successful Consume. Neither lfq.SPSCPtr nor the overflow ring
	// exposes a peek, so this is how CanBeConsumed answers without
	// dequeuing.
	pending int64

	producerFinished int32
	consumerFinished int32
}

// NewRecordQueue creates a queue with the default bounded fast-path
// capacity.
func NewRecordQueue() *RecordQueue {
	q := &RecordQueue{
		fast:       lfq.NewSPSCPtr(defaultCapacity),
		overflowMu: make(chan struct{}, 1),
	}
	q.overflowMu <- struct{}{}
	return q
}

// Produce hands ownership of r to the queue. Called by exactly one
// goroutine. Never blocks.
func (q *RecordQueue) Produce(r *simpleread.Record) {
	<-q.overflowMu
	hasOverflow := q.overflowHead < len(q.overflow)
	q.overflowMu <- struct{}{}

	if hasOverflow {
		// Preserve FIFO: once anything has spilled, keep spilling until the
		// consumer has drained the overflow, rather than interleaving the
		// fast ring out of order.
		q.pushOverflow(r)
		atomic.AddInt64(&q.pending, 1)
		return
	}
	if err := q.fast.Enqueue(unsafe.Pointer(r)); err != nil {
		q.pushOverflow(r)
	}
	atomic.AddInt64(&q.pending, 1)
}

func (q *RecordQueue) pushOverflow(r *simpleread.Record) {
	<-q.overflowMu
	q.overflow = append(q.overflow, r)
	q.overflowMu <- struct{}{}
}

// Consume returns the next record, or (nil, false) if the queue is
// currently empty. Called by exactly one goroutine. Never blocks.
func (q *RecordQueue) Consume() (*simpleread.Record, bool) {
	// Every item in the fast ring was produced before every item in the
	// overflow ring, so the fast ring is drained first.
	if ptr, err := q.fast.Dequeue(); err == nil {
		atomic.AddInt64(&q.pending, -1)
		return (*simpleread.Record)(ptr), true
	}

	<-q.overflowMu
	if q.overflowHead < len(q.overflow) {
		r := q.overflow[q.overflowHead]
		q.overflow[q.overflowHead] = nil
		q.overflowHead++
		if q.overflowHead == len(q.overflow) {
			q.overflow = nil
			q.overflowHead = 0
		}
		q.overflowMu <- struct{}{}
		atomic.AddInt64(&q.pending, -1)
		return r, true
	}
	q.overflowMu <- struct{}{}
	return nil, false
}

// CanBeConsumed reports whether at least one item is currently visible to
// the consumer. Safe to call from the consumer goroutine (or, as a
// conservative snapshot, from any goroutine coordinating shutdown).
func (q *RecordQueue) CanBeConsumed() bool {
	return atomic.LoadInt64(&q.pending) > 0
}

// SetProducerFinished latches the producer-finished flag. Idempotent.
func (q *RecordQueue) SetProducerFinished() {
	atomic.StoreInt32(&q.producerFinished, 1)
}

// ProducerFinished reports whether SetProducerFinished has been called.
func (q *RecordQueue) ProducerFinished() bool {
	return atomic.LoadInt32(&q.producerFinished) == 1
}

// SetConsumerFinished latches the consumer-finished flag. Idempotent.
func (q *RecordQueue) SetConsumerFinished() {
	atomic.StoreInt32(&q.consumerFinished, 1)
}

// ConsumerFinished reports whether SetConsumerFinished has been called.
func (q *RecordQueue) ConsumerFinished() bool {
	return atomic.LoadInt32(&q.consumerFinished) == 1
}
