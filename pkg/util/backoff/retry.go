/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package backoff

import (
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// The poll/report curve: delay = 2^(retry+retryOffset) * 100ms, jittered,
	// capped at maxRetryDelay. With retryOffset = 3 the first delay after a
	// failed poll is ~1.6s.
	retryOffset   = 3
	retryUnit     = 100 * time.Millisecond
	maxRetryDelay = 60 * time.Second

	// Sidecar exec calls that fail inside the Kubernetes API (as opposed to
	// the service reporting its own error) are replayed on this curve.
	execInitialInterval = 5 * time.Second
	execMultiplier      = 2.0
	execMaxRetries      = 5
)

// RetryDelay returns the jittered delay before retry number retry (1-based)
// of a work poll or status update.
func RetryDelay(retry int) time.Duration {
	exp := math.Pow(2, float64(retry+retryOffset))
	delay := time.Duration(exp) * retryUnit
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	// Jitter in [0.5, 1.5) spreads concurrent pods apart.
	jittered := float64(delay) * (0.5 + rand.Float64())
	if jittered > float64(maxRetryDelay) {
		return maxRetryDelay
	}
	return time.Duration(jittered)
}

// RetryExec runs op with the exec retry policy: up to execMaxRetries
// replays, exponential from execInitialInterval.
func RetryExec(op backoff.Operation) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = execInitialInterval
	b.Multiplier = execMultiplier
	b.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithMaxRetries(b, execMaxRetries))
}

// Retry runs op with a bounded generic exponential policy. Used where the
// caller only cares about a total budget, e.g. startup probes.
func Retry(op backoff.Operation, maxElapsedTime, maxInterval time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsedTime
	b.MaxInterval = maxInterval
	return backoff.Retry(op, b)
}

// SleepCheck sleeps for d but wakes every second to consult abort. It
// returns true when the sleep was cut short. Every suspension point in the
// worker longer than a second sleeps through here so a terminating pod
// exits promptly.
func SleepCheck(d time.Duration, abort func() bool) bool {
	deadline := time.Now().Add(d)
	for {
		if abort != nil && abort() {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		if remaining > time.Second {
			remaining = time.Second
		}
		time.Sleep(remaining)
	}
}
