// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// maxEpochParticipants bounds the total number of epochJoin calls over
// the life of the process, mirroring the original implementation's static
// thread-id cap: slots are never reused after epochLeave, so the next
// join past this count panics.
const maxEpochParticipants = 256

// retireThreshold is the pending-retire list size that triggers an epoch
// advance attempt and a reclaim sweep.
const retireThreshold = 96

// epochIdle is the local-epoch sentinel a participant publishes while
// outside a critical section. It is excluded from the min-epoch
// computation so an idle participant never blocks reclamation.
const epochIdle = ^uint64(0)

var (
	globalEpoch   atomix.Uint64
	epochNextSlot atomix.Uint64
	epochRegistry [maxEpochParticipants]atomic.Pointer[epochParticipant]
)

type epochRetired struct {
	epoch uint64
	job   *Job
	free  func(*Job)
}

// epochParticipant is a goroutine's handle into the epoch domain. Go has
// no thread-local storage, so — per the "pinned table indexed by
// thread-identity or a per-worker login/logout API" guidance — a
// participant joins once via epochJoin and keeps the returned handle for
// its lifetime, passing it explicitly rather than discovering it
// implicitly. Workers join on loop entry and leave on loop exit.
type epochParticipant struct {
	slot       int
	local      atomix.Uint64
	inCritical bool
	retireList []epochRetired
}

// epochJoin registers the calling goroutine as an epoch participant.
func epochJoin() *epochParticipant {
	slot := int(epochNextSlot.AddAcqRel(1) - 1)
	if slot >= maxEpochParticipants {
		panic("tasksys: too many epoch participants")
	}
	p := &epochParticipant{slot: slot}
	p.local.StoreRelease(epochIdle)
	epochRegistry[slot].Store(p)
	return p
}

// epochLeave clears the participant's slot and flushes any pending
// retires immediately, mirroring the original's thread-exit teardown.
func epochLeave(p *epochParticipant) {
	epochRegistry[p.slot].Store(nil)
	for _, r := range p.retireList {
		r.free(r.job)
	}
	p.retireList = nil
}

// Enter opens a critical section, publishing the current global epoch as
// this participant's local epoch, and returns a closer to end it. Nested
// calls are no-ops: the returned closer for a nested Enter does nothing,
// so `defer p.Enter()()` composes safely even if called from code already
// inside a critical section.
func (p *epochParticipant) Enter() func() {
	if p.inCritical {
		return func() {}
	}
	p.inCritical = true
	p.local.StoreRelease(globalEpoch.LoadAcquire())
	return func() {
		p.inCritical = false
		p.local.StoreRelease(epochIdle)
	}
}

// retire records obj for deferred reclamation via free once no
// participant's critical section could still observe it. When the
// pending list reaches retireThreshold it attempts to advance the
// global epoch and sweeps anything now safe to reclaim.
func (p *epochParticipant) retire(obj *Job, free func(*Job)) {
	p.retireList = append(p.retireList, epochRetired{
		epoch: globalEpoch.LoadAcquire(),
		job:   obj,
		free:  free,
	})
	if len(p.retireList) >= retireThreshold {
		tryAdvanceEpoch()
		p.reclaim()
	}
}

// reclaim frees every pending retire whose epoch+2 has fallen behind the
// current minimum local epoch across all registered participants. The +2
// gap accounts for the single-epoch-advance-per-call protocol: a
// participant observed at epoch E may still be mid-read of something
// retired at E-1.
func (p *epochParticipant) reclaim() {
	min := minEpoch()
	kept := p.retireList[:0]
	for _, r := range p.retireList {
		if r.epoch+2 <= min {
			r.free(r.job)
		} else {
			kept = append(kept, r)
		}
	}
	p.retireList = kept
}

func minEpoch() uint64 {
	min := epochIdle
	for i := range epochRegistry {
		participant := epochRegistry[i].Load()
		if participant == nil {
			continue
		}
		e := participant.local.LoadAcquire()
		if e != epochIdle && e < min {
			min = e
		}
	}
	return min
}

func tryAdvanceEpoch() {
	current := globalEpoch.LoadAcquire()
	if minEpoch() >= current {
		globalEpoch.CompareAndSwapAcqRel(current, current+1)
	}
}
