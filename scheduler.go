// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys

import (
	"sync"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// Config configures Scheduler creation. Build it with New; Build rejects
// queue capacities that are not powers of two >= 2.
type Config struct {
	workerCount    int
	localQueueSize int
	localBatch     int
	globalSize     int
	logger         *zap.Logger
	clock          clockz.Clock
	invalid        error
}

// New creates a Config builder. A workerCount below 1 is raised to 1.
// Queue capacities are not rounded: LocalQueueSize and GlobalQueueSize
// record ErrCapacityMisconfigured for any value that is not a power of
// two >= 2, and Build returns it.
func New(workerCount int) *Config {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Config{
		workerCount:    workerCount,
		localQueueSize: 8192,
		localBatch:     256,
		globalSize:     8192,
		logger:         zap.NewNop(),
		clock:          clockz.RealClock,
	}
}

// LocalQueueSize sets each worker's local deque capacity. n must be a
// power of two >= 2; otherwise Build reports ErrCapacityMisconfigured.
func (c *Config) LocalQueueSize(n int) *Config {
	if n < 2 || !isPow2(n) {
		c.invalid = ErrCapacityMisconfigured
		return c
	}
	c.localQueueSize = n
	return c
}

// LocalBatchSize records a batch size (values below 1 become 1) in the
// Config. Nothing reads it: a range job chunks down to the batch size
// passed to NewRangeJob, not to this value.
func (c *Config) LocalBatchSize(n int) *Config {
	if n < 1 {
		n = 1
	}
	c.localBatch = n
	return c
}

// GlobalQueueSize sets the shared global queue's capacity. n must be a
// power of two >= 2; otherwise Build reports ErrCapacityMisconfigured.
func (c *Config) GlobalQueueSize(n int) *Config {
	if n < 2 || !isPow2(n) {
		c.invalid = ErrCapacityMisconfigured
		return c
	}
	c.globalSize = n
	return c
}

// Logger sets the structured logger used for fatal-path and lifecycle
// events. Job execution itself never logs. Defaults to a no-op logger.
func (c *Config) Logger(l *zap.Logger) *Config {
	if l != nil {
		c.logger = l
	}
	return c
}

// Clock sets the injectable clock used for lifecycle-event timestamps.
// Defaults to clockz.RealClock; tests may inject a clockz.FakeClock.
func (c *Config) Clock(clock clockz.Clock) *Config {
	if clock != nil {
		c.clock = clock
	}
	return c
}

// Build creates a Scheduler from this Config, or returns
// ErrCapacityMisconfigured if LocalQueueSize/GlobalQueueSize was given a
// non-power-of-two capacity. The Scheduler still must be started with
// Start before any Push lands on a worker.
func (c *Config) Build() (*Scheduler, error) {
	if c.invalid != nil {
		return nil, c.invalid
	}
	s := &Scheduler{
		cfg:     *c,
		global:  newGlobalQueue[*Job](c.globalSize),
		metrics: newSchedulerMetrics(c.clock),
	}
	s.global.metrics = s.metrics
	s.roster = make([]*Worker, c.workerCount)
	for i := range s.roster {
		s.roster[i] = newWorker(i, s)
	}
	return s, nil
}

// Scheduler is a work-stealing job scheduler: a fixed roster of Workers,
// each with its own local deque, backed by a shared bounded global queue
// for overflow and for jobs submitted from outside any worker loop.
type Scheduler struct {
	cfg     Config
	roster  []*Worker
	global  *globalQueue[*Job]
	metrics *schedulerMetrics

	mu      sync.Mutex
	started bool
	stopped bool
	startWG *sync.WaitGroup

	startErrCh chan error
}

// Start spawns one goroutine per configured worker and waits for every
// worker to either join the epoch domain and enter its loop, or report a
// roster self-lookup failure (RosterInconsistent — this should only
// happen if the roster was mutated between Build and Start, which
// tasksys never does itself but a caller could). If any worker reports
// failure, Start kills the global queue, stops whatever workers already
// started, resets the queue, logs the failure, and returns false.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return true
	}

	var wg sync.WaitGroup
	started := make(chan struct{}, len(s.roster))
	s.startErrCh = make(chan error, len(s.roster))
	for _, w := range s.roster {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.start(started)
		}(w)
	}

	for i := 0; i < len(s.roster); i++ {
		select {
		case <-started:
		case err := <-s.startErrCh:
			s.global.Kill()
			for _, sibling := range s.roster {
				sibling.stop()
			}
			wg.Wait()
			s.global.UnsafeReset()
			s.cfg.logger.Error("tasksys: scheduler start failed", zap.Error(err))
			s.metrics.emitStartFailed(err)
			return false
		}
	}

	s.startWG = &wg
	s.started = true
	s.cfg.logger.Info("tasksys: scheduler started", zap.Int("workers", len(s.roster)))
	return true
}

// reportStartFailure is called by a Worker whose roster self-lookup
// fails, before its loop ever runs.
func (s *Scheduler) reportStartFailure(err error) {
	s.cfg.logger.Error("tasksys: worker failed to start", zap.Error(err))
	s.metrics.emitStartFailed(err)
	if s.startErrCh != nil {
		s.startErrCh <- err
	}
}

// Push submits job for execution. If the calling goroutine is a worker
// in this scheduler's own roster, job lands on that worker's local
// deque (falling back to the global queue if the deque is full).
// Otherwise job goes straight to the global queue, blocking the caller
// if the queue is momentarily full.
func (s *Scheduler) Push(job *Job) {
	if w := Current(); w != nil && w.sched == s {
		w.push(job)
		return
	}
	s.pushGlobal(job)
}

// pushGlobal enqueues job on the shared global queue, blocking the
// caller if it is momentarily full. While Stop is in progress the queue
// is dead and the job is dropped with a logged warning; once Stop has
// returned the queue has been reset, so a pushed job stays queued and
// no worker runs it — callers must not Push after Stop.
func (s *Scheduler) pushGlobal(job *Job) {
	if err := s.global.BlockingPush(job); err != nil {
		s.cfg.logger.Warn("tasksys: push onto dead queue dropped", zap.Error(err))
	}
}

func (s *Scheduler) emitWorkerStarted(id int) { s.metrics.emitWorkerStarted(id) }
func (s *Scheduler) emitWorkerStopped(id int) { s.metrics.emitWorkerStopped(id) }

// Stop kills the global queue, clears every worker's active flag, and
// waits for all worker goroutines to exit. If flush is true, the calling
// goroutine then drains whatever remains in the global queue itself,
// running each job (and the parent-continuation chain it unblocks) to
// completion before returning — jobs still sitting on a worker's own
// local deque at that point are not drained; only the shared global
// queue is, mirroring the original implementation's scheduler::stop.
//
// Stop always finishes by calling UnsafeReset, leaving the global queue
// in a fresh Alive state. A stopped Scheduler does not restart: a later
// Start is a no-op that returns true without spawning workers.
func (s *Scheduler) Stop(flush bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return
	}
	s.stopped = true

	s.global.Kill()
	for _, w := range s.roster {
		w.stop()
	}
	if s.startWG != nil {
		s.startWG.Wait()
	}

	if flush {
		for {
			job, err := s.global.Pop()
			if err != nil {
				break
			}
			for job != nil {
				next := job.call()
				putJob(job)
				job = next
			}
		}
	}

	s.global.UnsafeReset()
	s.cfg.logger.Info("tasksys: scheduler stopped")
}
