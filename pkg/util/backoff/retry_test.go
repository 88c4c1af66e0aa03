/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package backoff

import (
	"testing"
	"time"

	"gotest.tools/assert"
)

func TestRetryDelayCurve(t *testing.T) {
	// Retry 1 is 2^4 * 100ms = 1.6s before jitter; jitter keeps it within
	// [0.5, 1.5) of that.
	for i := 0; i < 50; i++ {
		d := RetryDelay(1)
		assert.Assert(t, d >= 800*time.Millisecond, "delay %s below jitter floor", d)
		assert.Assert(t, d < 2400*time.Millisecond, "delay %s above jitter ceiling", d)
	}
}

func TestRetryDelayIsCapped(t *testing.T) {
	for _, retry := range []int{20, 100, 1000} {
		assert.Assert(t, RetryDelay(retry) <= 60*time.Second)
	}
}

func TestSleepCheckAbortsWithinASecond(t *testing.T) {
	aborted := false
	start := time.Now()
	cut := SleepCheck(10*time.Second, func() bool {
		if time.Since(start) > 100*time.Millisecond {
			aborted = true
		}
		return aborted
	})
	assert.Assert(t, cut)
	assert.Assert(t, time.Since(start) < 3*time.Second)
}

func TestSleepCheckRunsToCompletion(t *testing.T) {
	start := time.Now()
	cut := SleepCheck(50*time.Millisecond, func() bool { return false })
	assert.Assert(t, !cut)
	assert.Assert(t, time.Since(start) >= 50*time.Millisecond)
}
