// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates a non-blocking queue operation cannot proceed
// immediately: the queue is full (push) or empty (pop).
//
// ErrWouldBlock is a control flow signal, not a failure. Callers should
// retry with backoff rather than propagate it.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency with
// [code.hybscloud.com/lfq].
var ErrWouldBlock = iox.ErrWouldBlock

// ErrQueueDead indicates a blocking operation was attempted on (or was
// unblocked by) a killed global queue. See globalQueue.Kill.
var ErrQueueDead = errors.New("tasksys: queue is dead")

// ErrCapacityMisconfigured indicates a capacity argument was not a power
// of two (or was below the minimum), violating a construction-time
// precondition.
var ErrCapacityMisconfigured = errors.New("tasksys: capacity must be a power of two >= 2")

// ErrRosterInconsistent indicates a worker could not find itself in its
// own roster during Scheduler.Start — the roster slice passed to the
// worker did not contain that worker's pointer.
var ErrRosterInconsistent = errors.New("tasksys: worker not found in its own roster")

// ErrAlloc indicates a job or queue buffer could not be allocated.
var ErrAlloc = errors.New("tasksys: allocation failed")

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
