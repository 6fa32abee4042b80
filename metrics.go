// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys

import (
	"context"
	"strconv"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability keys. Counters/gauges cover the scheduler and worker hot
// paths; spans cover one job chunk's execution;
// hook events cover lifecycle transitions only, never per-job outcomes —
// per-job frequency would make hookz subscriber callbacks a hot-path cost.
const (
	MetricJobsExecuted   = metricz.Key("tasksys.jobs.executed")
	MetricStealAttempts  = metricz.Key("tasksys.steals.attempted")
	MetricStealSuccesses = metricz.Key("tasksys.steals.succeeded")
	MetricQueueFull      = metricz.Key("tasksys.queue.full")
	MetricBackoffStage   = metricz.Key("tasksys.backoff.stage")

	SpanJobExecute = tracez.Key("tasksys.job.execute")

	TagWorkerID = tracez.Tag("tasksys.worker_id")
	TagJobSize  = tracez.Tag("tasksys.job_size")

	EventWorkerStarted     = hookz.Key("tasksys.worker.started")
	EventWorkerStopped     = hookz.Key("tasksys.worker.stopped")
	EventSchedulerStartErr = hookz.Key("tasksys.scheduler.start.failed")
)

// backoff ladder stage values reported on MetricBackoffStage.
const (
	stageSpin    = 0
	stageYield   = 1
	stageBlocked = 2
)

// LifecycleEvent is emitted via hookz for worker start/stop and
// scheduler start failure, so a host application can observe these
// transitions without polling Scheduler state.
type LifecycleEvent struct {
	WorkerID  int
	Err       error
	Timestamp time.Time
}

// schedulerMetrics bundles one Scheduler's metricz registry, tracez
// tracer, and hookz hook set. Counters/gauges are pre-registered at
// construction, matching the teacher pack's convention of registering
// every key up front rather than lazily on first use.
type schedulerMetrics struct {
	registry *metricz.Registry
	tracer   *tracez.Tracer
	hooks    *hookz.Hooks[LifecycleEvent]
	clock    clockz.Clock
}

func newSchedulerMetrics(clock clockz.Clock) *schedulerMetrics {
	reg := metricz.New()
	reg.Counter(MetricJobsExecuted)
	reg.Counter(MetricStealAttempts)
	reg.Counter(MetricStealSuccesses)
	reg.Counter(MetricQueueFull)
	reg.Gauge(MetricBackoffStage)

	return &schedulerMetrics{
		registry: reg,
		tracer:   tracez.New(),
		hooks:    hookz.New[LifecycleEvent](),
		clock:    clock,
	}
}

func (m *schedulerMetrics) jobExecuted() { m.registry.Counter(MetricJobsExecuted).Inc() }

// jobSpan starts a span covering one job chunk's execution. Callers must
// Finish it once the chunk's callback invocations have run.
func (m *schedulerMetrics) jobSpan(workerID, jobSize int) tracez.Span {
	_, span := m.tracer.StartSpan(context.Background(), SpanJobExecute)
	span.SetTag(TagWorkerID, strconv.Itoa(workerID))
	span.SetTag(TagJobSize, strconv.Itoa(jobSize))
	return span
}
func (m *schedulerMetrics) stealAttempted() { m.registry.Counter(MetricStealAttempts).Inc() }
func (m *schedulerMetrics) stealSucceeded() { m.registry.Counter(MetricStealSuccesses).Inc() }
func (m *schedulerMetrics) queueFull() { m.registry.Counter(MetricQueueFull).Inc() }

func (m *schedulerMetrics) backoffSpinning() {
	m.registry.Gauge(MetricBackoffStage).Set(float64(stageSpin))
}
func (m *schedulerMetrics) backoffYielding() {
	m.registry.Gauge(MetricBackoffStage).Set(float64(stageYield))
}
func (m *schedulerMetrics) backoffBlocking() {
	m.registry.Gauge(MetricBackoffStage).Set(float64(stageBlocked))
}
func (m *schedulerMetrics) backoffReset() {
	m.registry.Gauge(MetricBackoffStage).Set(float64(stageSpin))
}

func (m *schedulerMetrics) emitWorkerStarted(id int) {
	_ = m.hooks.Emit(context.Background(), EventWorkerStarted, LifecycleEvent{
		WorkerID: id, Timestamp: m.clock.Now(),
	})
}

func (m *schedulerMetrics) emitWorkerStopped(id int) {
	_ = m.hooks.Emit(context.Background(), EventWorkerStopped, LifecycleEvent{
		WorkerID: id, Timestamp: m.clock.Now(),
	})
}

func (m *schedulerMetrics) emitStartFailed(err error) {
	_ = m.hooks.Emit(context.Background(), EventSchedulerStartErr, LifecycleEvent{
		Err: err, Timestamp: m.clock.Now(),
	})
}

// OnWorkerStarted registers a callback fired each time a worker goroutine
// begins its loop.
func (m *schedulerMetrics) OnWorkerStarted(fn func(context.Context, LifecycleEvent) error) error {
	_, err := m.hooks.Hook(EventWorkerStarted, fn)
	return err
}

// OnWorkerStopped registers a callback fired each time a worker goroutine
// exits its loop.
func (m *schedulerMetrics) OnWorkerStopped(fn func(context.Context, LifecycleEvent) error) error {
	_, err := m.hooks.Hook(EventWorkerStopped, fn)
	return err
}

// OnStartFailed registers a callback fired when Scheduler.Start fails to
// bring up its full worker roster.
func (m *schedulerMetrics) OnStartFailed(fn func(context.Context, LifecycleEvent) error) error {
	_, err := m.hooks.Hook(EventSchedulerStartErr, fn)
	return err
}
