// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package tasksys

// RaceEnabled is true when the race detector is active.
// Used by tests to skip true lock-free stress tests (deque/global queue
// steal races), which the race detector flags as data races even though
// the surrounding atomix orderings make them correct.
const RaceEnabled = true
