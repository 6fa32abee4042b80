// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tasksys provides a work-stealing scheduler for short-lived,
// user-submitted computation units ("jobs") on a fixed pool of workers.
//
// The scheduler gives latency-bounded dispatch and fairness across workers
// via randomized stealing. A secondary primitive, range jobs, recursively
// subdivides an index interval across workers and reports completion to a
// parent job when every subrange finishes.
//
// # Quick Start
//
//	sched, err := tasksys.New(8).Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !sched.Start() {
//	    log.Fatal("failed to start scheduler")
//	}
//	defer sched.Stop(true)
//
//	var done atomix.Bool
//	sched.Push(tasksys.NewJob(func(i int) {
//	    done.StoreRelease(true)
//	}, nil))
//
// # Range Jobs
//
// A range job covers a half-open interval [begin, end) and is chunked by
// the owning worker until each piece is at most batch_size wide:
//
//	var counter atomix.Int64
//	root := tasksys.NewRangeJob(func(i int) {
//	    counter.AddAcqRel(1)
//	}, tasksys.Range{Begin: 0, End: 1 << 18}, 256, nil)
//	sched.Push(root)
//
// To be notified when every index in the range has run, pass a parent job
// whose callback observes the children completing:
//
//	parent := tasksys.NewJob(func(int) { close(done) }, nil)
//	root := tasksys.NewRangeJob(worker, tasksys.Range{0, n}, batch, parent)
//	sched.Push(root)
//
// # Submitting From Inside a Job
//
// A job's callback may itself call Scheduler.Push. If the calling
// goroutine is a worker's loop, the new job lands on that worker's local
// deque (falling back to the global queue only if the deque is full),
// preserving cache locality. Submissions from any other goroutine go to
// the global queue.
//
// # Shutdown
//
// Stop(flush) kills the global queue, unblocking every blocked push/pop,
// clears every worker's active flag, and joins all worker goroutines. When
// flush is true, the calling goroutine then drains whatever remains in
// the global queue itself, running each job (and the parent-continuation
// chain it unblocks) to completion before returning; jobs still sitting
// on a worker's own local deque at that point are not drained.
//
// # Concurrency Model
//
// Workers are plain goroutines running a dedicated loop that blocks only
// on the global queue's blocking pop, reached after a spin/yield backoff
// ladder. There is no green-threading and no internal yield point inside
// user code; a job's callback runs to completion without preemption.
//
// # Error Handling
//
// Non-blocking queue operations return [code.hybscloud.com/iox.ErrWouldBlock]
// (re-exported as [ErrWouldBlock]) when they cannot proceed immediately;
// callers should retry with backoff, not treat it as failure. Build
// returns [ErrCapacityMisconfigured] directly. A worker that cannot find
// itself in the roster makes Start return false; its
// [ErrRosterInconsistent] is logged and delivered to the start-failed
// lifecycle hook. [ErrAlloc] is declared but no call site returns it.
//
// # Dependencies
//
// This package builds on [code.hybscloud.com/atomix] for explicit-ordering
// atomics, [code.hybscloud.com/spin] for CPU-relax backoff, and
// [code.hybscloud.com/iox] for semantic errors — the same stack
// [code.hybscloud.com/lfq] uses, which this package also exposes as an
// alternative global-queue collaborator (see [AltGlobalQueue]) for
// side-by-side comparison against the scheduler's own Vyukov-sequenced
// queue. Observability is layered on top via
// [github.com/zoobzio/metricz], [github.com/zoobzio/tracez], and
// [github.com/zoobzio/hookz]; lifecycle and fatal-path logging uses
// [go.uber.org/zap].
package tasksys
