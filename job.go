// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys

import "code.hybscloud.com/atomix"

// Range is a half-open index interval [Begin, End) covered by a range job.
type Range struct {
	Begin int
	End   int
}

// Job is one scheduled work item: a callback over a half-open index
// range, an outstanding-children counter for range-job chunking, and a
// non-owning pointer to a parent job awaiting that counter's zero
// transition.
//
// A Job's interior is mutated only by the worker currently holding it —
// the owner while it sits on a local deque, the stealer once it is taken.
// There is never concurrent access to one Job's fields; the children
// counter is the only field touched from more than one goroutine, and
// only atomically.
type Job struct {
	fn       func(int)
	begin    int
	end      int
	batch    int
	children atomix.Int64
	parent   *Job
}

// NewJob creates a single-index job (equivalent to a range job over
// [0,1) with batch size 1), incrementing parent's outstanding-children
// counter if parent is non-nil.
func NewJob(fn func(int), parent *Job) *Job {
	return NewRangeJob(fn, Range{Begin: 0, End: 1}, 1, parent)
}

// NewRangeJob creates a job covering r, chunked by the owning worker
// whenever its span exceeds batchSize. If parent is non-nil its
// outstanding-children counter is incremented atomically before this
// call returns, so the caller may safely push both without racing the
// parent's zero-transition.
func NewRangeJob(fn func(int), r Range, batchSize int, parent *Job) *Job {
	if batchSize < 1 {
		batchSize = 1
	}
	if parent != nil {
		parent.children.AddAcqRel(1)
	}

	j := rentJob()
	j.fn = fn
	j.begin = r.Begin
	j.end = r.End
	j.batch = batchSize
	j.parent = parent
	j.children.StoreRelaxed(0)
	return j
}

// size returns the number of indices remaining in the job.
func (j *Job) size() int {
	return j.end - j.begin
}

// empty reports whether the job's range is zero-width. An empty range
// job runs no callback invocations but still follows its
// parent-continuation chain.
func (j *Job) empty() bool {
	return j.begin == j.end
}

// split carves off the upper half of the job's remaining range (at
// indices from the current begin) into a new sibling job sharing the
// same parent and callback, and shrinks the receiver to the lower half.
// The new job's parent-refcount increment happens inside NewRangeJob.
func (j *Job) split(at int) *Job {
	right := NewRangeJob(j.fn, Range{Begin: j.begin + at, End: j.end}, j.batch, j.parent)
	j.end = j.begin + at
	return right
}

// call runs fn over every remaining index, then decrements the parent's
// outstanding-children counter if this job has a parent. If that
// decrement reaches zero, ownership of the parent pointer transfers to
// the caller — it should be executed next, inline, without another
// enqueue (tail-call continuation). call returns nil when there is no
// continuation to run.
func (j *Job) call() *Job {
	for i := j.begin; i < j.end; i++ {
		j.fn(i)
	}

	if j.parent != nil && j.parent.children.AddAcqRel(-1) == 0 {
		return j.parent
	}
	return nil
}
