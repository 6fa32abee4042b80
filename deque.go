// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys

import "code.hybscloud.com/atomix"

// localDeque is a bounded single-producer/multi-consumer work-stealing
// deque of *Job, implementing the Chase-Lev algorithm ("Correct and
// Efficient Work-Stealing for Weak Memory Models", Lê et al., INRIA/ENS).
//
// Push and Take are called only by the owning worker; Steal may be
// called by any other worker. Only the owner mutates bottom; any thread
// may CAS top. Logical size is bottom-top (modular), always <= capacity.
//
// The buffer slot itself is a plain field, not an atomic type — like
// [code.hybscloud.com/lfq]'s generic queues, visibility is established by
// the surrounding ordered operations on top/bottom rather than by the
// slot access itself. The Go memory model specifies every
// [code.hybscloud.com/atomix] operation used here as sequentially
// consistent, which is the strongest ordering the C++ algorithm's
// explicit seq_cst fences ask for — so no separate fence primitive is
// needed; the acquire/release/CAS orderings below are the fence.
type localDeque struct {
	_      pad
	bottom atomix.Uint64 // owner end; only the owner writes this
	_      pad
	top    atomix.Uint64 // stealer end; any thread may CAS this
	_      pad
	buffer []*Job
	mask   uint64
}

func newLocalDeque(capacity int) *localDeque {
	if !isPow2(capacity) {
		capacity = roundToPow2(capacity)
	}
	return &localDeque{
		buffer: make([]*Job, capacity),
		mask:   uint64(capacity) - 1,
	}
}

func (d *localDeque) cap() int {
	return len(d.buffer)
}

// Push adds job to the bottom of the deque. Owner only.
func (d *localDeque) Push(job *Job) bool {
	b := d.bottom.LoadRelaxed()
	t := d.top.LoadAcquire()

	if b-t >= uint64(len(d.buffer)) {
		return false
	}

	d.buffer[b&d.mask] = job
	d.bottom.StoreRelease(b + 1)
	return true
}

// Take removes and returns the job at the bottom of the deque (LIFO for
// the owner). Owner only.
func (d *localDeque) Take() *Job {
	b := d.bottom.LoadRelaxed() - 1
	d.bottom.StoreRelaxed(b)

	t := d.top.LoadAcquire()

	if int64(b-t) < 0 {
		// Deque was empty; restore.
		d.bottom.StoreRelaxed(b + 1)
		return nil
	}

	job := d.buffer[b&d.mask]

	if t == b {
		// Last element: race against stealers for it.
		if !d.top.CompareAndSwapAcqRel(t, t+1) {
			job = nil
		}
		d.bottom.StoreRelease(b + 1)
	}

	return job
}

// Steal removes and returns the job at the top of the deque. Any thread
// other than the owner may call this.
func (d *localDeque) Steal() *Job {
	t := d.top.LoadAcquire()
	b := d.bottom.LoadAcquire()

	if int64(b-t) <= 0 {
		return nil
	}

	job := d.buffer[t&d.mask]

	if !d.top.CompareAndSwapAcqRel(t, t+1) {
		return nil
	}

	return job
}
