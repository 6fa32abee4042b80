// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tasksys_test

import (
	"errors"
	"fmt"
	"testing"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/tasksys"
)

// TestIsWouldBlock tests the IsWouldBlock error classification function.
func TestIsWouldBlock(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"ErrWouldBlock", tasksys.ErrWouldBlock, true},
		{"iox.ErrWouldBlock", iox.ErrWouldBlock, true},
		{"ErrQueueDead", tasksys.ErrQueueDead, false},
		{"other error", errors.New("other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tasksys.IsWouldBlock(tt.err); got != tt.want {
				t.Errorf("IsWouldBlock(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestIsSemantic tests the IsSemantic error classification function.
func TestIsSemantic(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"ErrWouldBlock", tasksys.ErrWouldBlock, true},
		{"iox.ErrWouldBlock", iox.ErrWouldBlock, true},
		{"ErrCapacityMisconfigured", tasksys.ErrCapacityMisconfigured, false},
		{"other error", errors.New("other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tasksys.IsSemantic(tt.err); got != tt.want {
				t.Errorf("IsSemantic(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestIsNonFailure tests the IsNonFailure error classification function.
func TestIsNonFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"ErrWouldBlock", tasksys.ErrWouldBlock, true},
		{"iox.ErrWouldBlock", iox.ErrWouldBlock, true},
		{"ErrRosterInconsistent", tasksys.ErrRosterInconsistent, false},
		{"other error", errors.New("failure"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tasksys.IsNonFailure(tt.err); got != tt.want {
				t.Errorf("IsNonFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// ExampleIsWouldBlock demonstrates treating a full queue as backpressure
// rather than as a failure.
func ExampleIsWouldBlock() {
	q := tasksys.NewAltGlobalQueue(2)
	q.Push(tasksys.NewJob(func(int) {}, nil))
	q.Push(tasksys.NewJob(func(int) {}, nil))

	err := q.Push(tasksys.NewJob(func(int) {}, nil))
	if tasksys.IsWouldBlock(err) {
		fmt.Println("queue full - applying backpressure")
	}
	// Output: queue full - applying backpressure
}
