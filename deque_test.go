// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys

import (
	"sync"
	"testing"
)

func TestDequeCapacityRoundsToPow2(t *testing.T) {
	d := newLocalDeque(3)
	if d.cap() != 4 {
		t.Fatalf("cap: got %d, want 4", d.cap())
	}
}

func TestDequePushTakeLIFO(t *testing.T) {
	d := newLocalDeque(8)
	jobs := make([]*Job, 4)
	for i := range jobs {
		jobs[i] = &Job{}
		if !d.Push(jobs[i]) {
			t.Fatalf("Push(%d): want true", i)
		}
	}

	for i := len(jobs) - 1; i >= 0; i-- {
		got := d.Take()
		if got != jobs[i] {
			t.Fatalf("Take order: got job %p, want %p (index %d)", got, jobs[i], i)
		}
	}

	if got := d.Take(); got != nil {
		t.Fatalf("Take on empty: got %p, want nil", got)
	}
}

func TestDequePushFullReturnsFalse(t *testing.T) {
	d := newLocalDeque(2)
	if !d.Push(&Job{}) {
		t.Fatal("Push 1: want true")
	}
	if !d.Push(&Job{}) {
		t.Fatal("Push 2: want true")
	}
	if d.Push(&Job{}) {
		t.Fatal("Push 3 on full deque: want false")
	}
}

func TestDequeStealFIFO(t *testing.T) {
	d := newLocalDeque(8)
	jobs := make([]*Job, 4)
	for i := range jobs {
		jobs[i] = &Job{}
		d.Push(jobs[i])
	}

	for i := 0; i < len(jobs); i++ {
		got := d.Steal()
		if got != jobs[i] {
			t.Fatalf("Steal order: got job %p, want %p (index %d)", got, jobs[i], i)
		}
	}
	if got := d.Steal(); got != nil {
		t.Fatalf("Steal on empty: got %p, want nil", got)
	}
}

func TestDequeStealEmptyReturnsNil(t *testing.T) {
	d := newLocalDeque(8)
	if got := d.Steal(); got != nil {
		t.Fatalf("Steal on empty deque: got %p, want nil", got)
	}
}

// TestDequeConcurrentStealLinearizable pushes n distinct jobs then lets the
// owner Take and several stealers Steal concurrently; every job must be
// observed exactly once across all of them.
func TestDequeConcurrentStealLinearizable(t *testing.T) {
	if RaceEnabled {
		t.Skip("skip: lock-free steal races are expected and benign, but the race detector flags them")
	}
	const n = 20000
	d := newLocalDeque(roundToPow2(n))
	jobs := make([]*Job, n)
	seen := make([]int32, n)
	index := make(map[*Job]int, n)
	for i := range jobs {
		jobs[i] = &Job{begin: i}
		index[jobs[i]] = i
		d.Push(jobs[i])
	}

	const stealers = 7
	var wg sync.WaitGroup
	var mu sync.Mutex
	recordOnce := func(j *Job) {
		mu.Lock()
		idx := index[j]
		mu.Unlock()
		if seen[idx] != 0 {
			t.Errorf("job %d observed more than once", idx)
		}
		seen[idx] = 1
	}

	for s := 0; s < stealers; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j := d.Steal()
				if j == nil {
					return
				}
				recordOnce(j)
			}
		}()
	}

	for {
		j := d.Take()
		if j == nil {
			break
		}
		recordOnce(j)
	}
	wg.Wait()

	for i, v := range seen {
		if v == 0 {
			t.Fatalf("job %d never observed", i)
		}
	}
}
