// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys

import "sync"

// jobPool is a free-list allocator for *Job, refilled lazily and bounded
// only by steady-state demand. Each Worker owns one; it is touched only
// by that worker's loop goroutine. A job created on one goroutine may be
// executed and returned to the pool on another (stealing is exactly
// this), but the returning goroutine always puts it back into its OWN
// pool, never the pool of origin — so no jobPool instance is ever
// accessed by two goroutines at once.
type jobPool struct {
	free []*Job
}

func (p *jobPool) rent() *Job {
	if n := len(p.free); n > 0 {
		j := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		return j
	}
	return &Job{}
}

func (p *jobPool) put(j *Job) {
	*j = Job{}
	p.free = append(p.free, j)
}

// foreignPool backs job creation from goroutines that are not a worker's
// loop — e.g. the initial submission from an application's main
// goroutine, before any job is running to own a jobPool. It is the one
// pool shared across goroutines, so it is mutex-guarded; steady-state
// traffic does not touch it once jobs are flowing through workers.
var foreignPool = struct {
	mu   sync.Mutex
	pool jobPool
}{}

func rentJob() *Job {
	if w := Current(); w != nil {
		return w.pool.rent()
	}
	foreignPool.mu.Lock()
	defer foreignPool.mu.Unlock()
	return foreignPool.pool.rent()
}

// putJob returns j directly to a pool without going through the epoch
// reclaimer. Only safe when no concurrent Take/Steal could still be
// racing for j — e.g. draining the global queue after every worker has
// already exited, in Scheduler.Stop's flush path.
func putJob(j *Job) {
	if w := Current(); w != nil {
		w.pool.put(j)
		return
	}
	foreignPool.mu.Lock()
	defer foreignPool.mu.Unlock()
	foreignPool.pool.put(j)
}
