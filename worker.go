// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys

import (
	"runtime"
	"strconv"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Worker owns one localDeque and drives its own loop goroutine: pop from
// its own deque, else steal from a random sibling, else block on the
// scheduler's global queue. Every field below is touched only by the
// worker's own loop goroutine except active, which Scheduler.Stop clears
// from outside to request shutdown.
type Worker struct {
	id      int
	sched   *Scheduler
	deque   *localDeque
	pool    jobPool
	epoch   *epochParticipant
	rngSeed uint32
	active  atomix.Bool
	done    chan struct{}
}

func newWorker(id int, sched *Scheduler) *Worker {
	return &Worker{
		id:      id,
		sched:   sched,
		deque:   newLocalDeque(sched.cfg.localQueueSize),
		rngSeed: uint32(id)*2654435761 + 1,
		done:    make(chan struct{}),
	}
}

// rnd32 is a xorshift32 PRNG used to pick a random steal victim, matching
// the original implementation's worker::rnd32.
func (w *Worker) rnd32() uint32 {
	x := w.rngSeed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	w.rngSeed = x
	return x
}

// start registers w in the current-worker registry and runs its loop on
// the calling goroutine. The caller spawns one goroutine per Worker.
// started is signaled once w has joined the epoch domain and is about to
// enter its loop; on a roster self-lookup failure start reports through
// Scheduler.reportStartFailure instead and returns without signaling.
func (w *Worker) start(started chan<- struct{}) {
	found := false
	for _, sibling := range w.sched.roster {
		if sibling == w {
			found = true
			break
		}
	}
	if !found {
		w.sched.reportStartFailure(ErrRosterInconsistent)
		return
	}

	w.epoch = epochJoin()
	defer epochLeave(w.epoch)

	registerCurrent(w)
	defer unregisterCurrent()

	w.active.StoreRelease(true)
	defer close(w.done)

	w.sched.emitWorkerStarted(w.id)
	defer w.sched.emitWorkerStopped(w.id)

	started <- struct{}{}
	w.loop()
}

// stop requests w's loop to exit after its current job, if any, finishes.
func (w *Worker) stop() {
	w.active.StoreRelease(false)
}

// push enqueues job onto w's own local deque, falling back to the
// scheduler's global queue when the deque is full.
func (w *Worker) push(job *Job) {
	if w.deque.Push(job) {
		return
	}
	w.sched.pushGlobal(job)
}

// loop is the worker's main scheduling loop: take a job from the
// cheapest available source, run it (chunking range jobs larger than the
// configured batch size), and chase any tail-call continuation inline
// before going back for more work. When no job is available it backs off
// along the spin -> yield -> block ladder.
func (w *Worker) loop() {
	b := newBackoff(w.sched.metrics)
	for w.active.LoadAcquire() {
		// take's deque.Take/Steal race window must be epoch-protected: a
		// stealer that loses its CAS has already read a *Job pointer the
		// owner may concurrently return to its pool and hand back out to
		// a fresh job before the loser's CAS outcome is known. Entering
		// before take, not after a job is already in hand, is what
		// closes that window.
		closer := w.epoch.Enter()
		job := w.take()
		if job == nil {
			closer()
			job = b.wait(w.sched)
			if job == nil {
				continue
			}
			closer = w.epoch.Enter()
		}
		b.reset()

		for job != nil {
			job = w.chunk(job)
		}
		closer()
	}
}

// chunk runs one unit of job, splitting off the upper half to the local
// deque whenever the job's remaining span exceeds its configured batch
// size, and returns any parent continuation unblocked by this job's
// completion so the caller can run it inline without a further enqueue.
// The caller holds the epoch critical section open for the duration.
func (w *Worker) chunk(job *Job) *Job {
	for job.size() > job.batch {
		half := job.size() / 2
		right := job.split(half)
		w.push(right)
	}

	span := w.sched.metrics.jobSpan(w.id, job.size())
	next := job.call()
	span.Finish()
	w.sched.metrics.jobExecuted()

	w.releaseJob(job)
	return next
}

// take returns the next job to run: from this worker's own deque first,
// then a random sibling's deque, then the scheduler's global queue.
// Callers must hold the epoch critical section open across this call.
func (w *Worker) take() *Job {
	if job := w.deque.Take(); job != nil {
		return job
	}

	n := len(w.sched.roster)
	if n > 1 {
		ofs := int(w.rnd32()) % (n - 1)
		victim := (w.id + 1 + ofs) % n
		w.sched.metrics.stealAttempted()
		if job := w.sched.roster[victim].deque.Steal(); job != nil {
			w.sched.metrics.stealSucceeded()
			return job
		}
	}

	if job, err := w.sched.global.Pop(); err == nil {
		return job
	}
	return nil
}

// releaseJob returns job to w's own pool through the epoch reclaimer, so
// a stealer that lost its Take/Steal race against this exact job never
// observes it mid-reuse.
func (w *Worker) releaseJob(job *Job) {
	w.epoch.retire(job, func(j *Job) { w.pool.put(j) })
}

// current-worker registry.
//
// Go has no true thread-local storage, and a Job's callback is an
// ordinary func(int) with no worker handle threaded through it — yet a
// callback that itself calls Scheduler.Push must land on its own
// worker's local deque rather than the shared global queue. Per the
// spec's own fallback guidance for hosts without thread-local statics
// ("a pinned table indexed by thread-identity"), tasksys keys a small
// table by goroutine id, the closest Go equivalent of thread identity.
// The id is recovered from the calling goroutine's stack header via
// runtime.Stack on every registry access, the same technique used by goroutine-local-storage
// shims across the ecosystem; none of the example repos in this pack
// carry such a library; keeping this on the standard library avoids
// fabricating a dependency for one five-line lookup.
var currentRegistry sync.Map // goroutine id (uint64) -> *Worker

func registerCurrent(w *Worker) {
	currentRegistry.Store(goroutineID(), w)
}

func unregisterCurrent() {
	currentRegistry.Delete(goroutineID())
}

// Current returns the Worker driving the calling goroutine, or nil if
// the calling goroutine is not a worker loop (e.g. the application's own
// goroutine submitting the first job into the scheduler).
func Current() *Worker {
	v, ok := currentRegistry.Load(goroutineID())
	if !ok {
		return nil
	}
	return v.(*Worker)
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Stack's first line is "goroutine <id> [running]:".
	s := buf[:n]
	const prefix = "goroutine "
	if len(s) <= len(prefix) {
		return 0
	}
	s = s[len(prefix):]
	i := 0
	for i < len(s) && s[i] != ' ' {
		i++
	}
	id, _ := strconv.ParseUint(string(s[:i]), 10, 64)
	return id
}

// backoff implements the spin -> yield -> block ladder a worker follows
// when it finds no work: a short run of CPU-relax spins, then a longer
// run of runtime.Gosched yields, then a blocking pop on the scheduler's
// global queue. Spin and yield counts are arbitrary but fixed, matching
// the ladder shape described for the worker loop; stage transitions are
// observed only through metrics, never through a clock on the hot path.
type backoff struct {
	misses  int
	metrics *schedulerMetrics
}

const (
	spinLimit  = 2000
	yieldLimit = 10000
)

func newBackoff(m *schedulerMetrics) *backoff {
	return &backoff{metrics: m}
}

func (b *backoff) reset() {
	if b.misses >= spinLimit {
		b.metrics.backoffReset()
	}
	b.misses = 0
}

// wait advances the ladder by one step: a CPU-relax spin, a scheduler
// yield, or — once both are exhausted — a blocking pop on the
// scheduler's global queue. It returns the job obtained from that
// blocking pop (nil if still in the spin/yield stages, or if the queue
// was killed out from under a parked call).
func (b *backoff) wait(sched *Scheduler) *Job {
	b.misses++
	switch {
	case b.misses == 1:
		b.metrics.backoffSpinning()
	case b.misses == spinLimit+1:
		b.metrics.backoffYielding()
	case b.misses == spinLimit+yieldLimit+1:
		b.metrics.backoffBlocking()
	}

	switch {
	case b.misses <= spinLimit:
		sw := spin.Wait{}
		sw.Once()
		return nil
	case b.misses <= spinLimit+yieldLimit:
		runtime.Gosched()
		return nil
	default:
		b.misses = spinLimit + yieldLimit
		job, err := sched.global.BlockingPop()
		if err != nil {
			return nil
		}
		return job
	}
}
