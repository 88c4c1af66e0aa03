/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package channel

// Tomb controls the lifecycle of a long-running goroutine such as the
// pull-worker loop. Stop blocks until the goroutine acknowledges with Done,
// which gives an in-flight work item the chance to be reported first.
type Tomb struct {
	stop chan struct{}
	done chan struct{}
}

func NewTomb() *Tomb {
	return &Tomb{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Stop asks the goroutine to exit and waits for it.
func (t *Tomb) Stop() {
	close(t.stop)
	<-t.done
}

// Stopping is selected on by the goroutine to learn it should exit.
func (t *Tomb) Stopping() <-chan struct{} {
	return t.stop
}

// Done is called by the goroutine once it has fully wound down.
func (t *Tomb) Done() {
	close(t.done)
}

func (t *Tomb) IsStopped() bool {
	return IsChannelClosed(t.stop)
}
