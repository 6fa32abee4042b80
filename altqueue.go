// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys

import "code.hybscloud.com/lfq"

// AltGlobalQueue is a bounded MPMC job queue backed by
// [code.hybscloud.com/lfq]'s FAA/SCQ-style MPMC instead of tasksys's own
// Vyukov-sequenced globalQueue. It satisfies the same minimal
// producer/consumer surface as Scheduler's global queue and exists
// purely as a historical-comparison collaborator — e.g. for benchmarking
// one queue design against the other under identical job traffic.
//
// Scheduler never constructs or depends on AltGlobalQueue; wiring it
// into the hot path would trade away the blocking push/pop and kill
// semantics the scheduler's shutdown protocol requires, which
// lfq.Queue[T] does not expose.
type AltGlobalQueue struct {
	q lfq.Queue[*Job]
}

// NewAltGlobalQueue creates an AltGlobalQueue of the given capacity
// (rounded up to the next power of two by lfq.New).
func NewAltGlobalQueue(capacity int) *AltGlobalQueue {
	return &AltGlobalQueue{q: lfq.BuildMPMC[*Job](lfq.New(capacity))}
}

// Push enqueues job. Returns ErrWouldBlock if the queue is full.
func (a *AltGlobalQueue) Push(job *Job) error {
	return a.q.Enqueue(&job)
}

// Pop dequeues the oldest job. Returns (nil, ErrWouldBlock) if empty.
func (a *AltGlobalQueue) Pop() (*Job, error) {
	return a.q.Dequeue()
}

// Cap returns the queue's physical capacity.
func (a *AltGlobalQueue) Cap() int {
	return a.q.Cap()
}
