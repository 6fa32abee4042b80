// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// globalQueue is a bounded multi-producer/multi-consumer FIFO, the
// scheduler's shared ingress/overflow queue. It is a CAS-based
// Vyukov-style sequenced slot array — the same algorithm as
// [code.hybscloud.com/lfq]'s MPMCSeq, generalized here with blocking
// push/pop and a one-way kill so workers can park on it as the last rung
// of the backoff ladder instead of only spinning.
//
// Per slot qSeq: initialized to the slot's index; a producer may claim a
// slot when it observes seq == position, a consumer when it observes
// seq == position+1.
type globalQueue[T any] struct {
	_    pad
	tail atomix.Uint64 // producer index
	_    pad
	head atomix.Uint64 // consumer index
	_    pad
	buffer []gqSlot[T]
	mask   uint64
	cap    uint64

	alive   atomix.Bool
	metrics *schedulerMetrics

	// parkMu guards park and gen. gen is bumped every time wake() runs
	// (on a successful Push/Pop or a Kill), and BlockingPush/BlockingPop
	// snapshot it before each failed non-blocking attempt, re-checking it
	// under parkMu immediately before Wait — so a wake that lands between
	// the failed attempt and the park call is never lost, since it is
	// observed as a generation change instead of relying on Wait's own
	// queueing to catch a signal sent before the waiter ever locked.
	parkMu sync.Mutex
	park   sync.Cond
	gen    uint64
}

type gqSlot[T any] struct {
	seq  atomix.Uint64
	data T
}

func newGlobalQueue[T any](capacity int) *globalQueue[T] {
	if !isPow2(capacity) {
		capacity = roundToPow2(capacity)
	}
	n := uint64(capacity)
	q := &globalQueue[T]{
		buffer: make([]gqSlot[T], n),
		mask:   n - 1,
		cap:    n,
	}
	q.park.L = &q.parkMu
	q.alive.StoreRelaxed(true)
	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}
	return q
}

// Push enqueues elem. Returns ErrWouldBlock if the queue is full.
func (q *globalQueue[T]) Push(elem T) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		slot := &q.buffer[tail&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(tail)

		if diff == 0 {
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.data = elem
				slot.seq.StoreRelease(tail + 1)
				q.wake()
				return nil
			}
		} else if diff < 0 {
			if q.metrics != nil {
				q.metrics.queueFull()
			}
			return ErrWouldBlock
		}
		sw.Once()
	}
}

// Pop dequeues the oldest element. Returns (zero, ErrWouldBlock) if the
// queue is empty.
func (q *globalQueue[T]) Pop() (T, error) {
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		slot := &q.buffer[head&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(head+1)

		if diff == 0 {
			if q.head.CompareAndSwapAcqRel(head, head+1) {
				elem := slot.data
				var zero T
				slot.data = zero
				slot.seq.StoreRelease(head + q.cap)
				q.wake()
				return elem, nil
			}
		} else if diff < 0 {
			var zero T
			return zero, ErrWouldBlock
		}
		sw.Once()
	}
}

// BlockingPush enqueues elem, parking the calling goroutine when the
// queue is full until space opens up or the queue is killed. Returns
// ErrQueueDead only if the queue became (or already was) killed.
func (q *globalQueue[T]) BlockingPush(elem T) error {
	for {
		gen := q.snapshotGen()
		if !q.alive.LoadAcquire() {
			return ErrQueueDead
		}
		if err := q.Push(elem); err == nil {
			return nil
		}
		q.waitForChange(gen)
	}
}

// BlockingPop dequeues the oldest element, parking the calling goroutine
// when the queue is empty until an item arrives or the queue is killed.
// Returns (zero, ErrQueueDead) once the queue is killed and drained.
func (q *globalQueue[T]) BlockingPop() (T, error) {
	for {
		gen := q.snapshotGen()
		if elem, err := q.Pop(); err == nil {
			return elem, nil
		}
		if !q.alive.LoadAcquire() {
			var zero T
			return zero, ErrQueueDead
		}
		q.waitForChange(gen)
	}
}

// Kill transitions the queue to the Killed state. Idempotent. Already
// enqueued items remain poppable via Pop and BlockingPop; BlockingPush on
// a killed queue, and BlockingPop on an empty killed queue, return the
// dead indication instead of parking.
// Wakes every goroutine currently parked in BlockingPush/BlockingPop.
func (q *globalQueue[T]) Kill() {
	q.alive.StoreRelease(false)
	q.wake()
}

// UnsafeReset reinitializes the queue to a fresh Alive state. The caller
// must ensure the queue holds no live items — UnsafeReset does not drain
// or free anything, it only rewinds indices and slot sequence numbers.
func (q *globalQueue[T]) UnsafeReset() {
	q.tail.StoreRelaxed(0)
	q.head.StoreRelaxed(0)
	for i := range q.buffer {
		var zero T
		q.buffer[i].data = zero
		q.buffer[i].seq.StoreRelaxed(uint64(i))
	}
	q.alive.StoreRelease(true)
}

func (q *globalQueue[T]) Cap() int {
	return int(q.cap)
}

func (q *globalQueue[T]) wake() {
	q.parkMu.Lock()
	q.gen++
	q.park.Broadcast()
	q.parkMu.Unlock()
}

// snapshotGen returns the current wake generation, to be passed to a
// later waitForChange call bracketing a failed non-blocking attempt.
func (q *globalQueue[T]) snapshotGen() uint64 {
	q.parkMu.Lock()
	defer q.parkMu.Unlock()
	return q.gen
}

// waitForChange parks until gen advances past since, re-checking the
// generation under parkMu on every wakeup so a wake() that ran between
// the caller's failed attempt and this call is never missed: since was
// sampled before that attempt, so if gen has already moved by the time
// we acquire parkMu here, we return immediately instead of parking.
func (q *globalQueue[T]) waitForChange(since uint64) {
	q.parkMu.Lock()
	for q.gen == since {
		q.park.Wait()
	}
	q.parkMu.Unlock()
}
