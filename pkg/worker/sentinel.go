/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package worker

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/util/channel"
)

const (
	// TerminatingFile is written by the pod's PreStop hook (or our own signal
	// handler); its presence tells the loop to exit cleanly.
	TerminatingFile = "TERMINATING"
	// WorkingFile is present while a work item is in flight, from lease to
	// final status report. The PreStop hook waits for it to disappear.
	WorkingFile = "WORKING"
)

// Sentinels coordinates the worker loop with the pod lifecycle through flag
// files in the working directory.
type Sentinels struct {
	dir string
}

func NewSentinels(dir string) *Sentinels {
	return &Sentinels{dir: dir}
}

func (s *Sentinels) terminatingPath() string {
	return filepath.Join(s.dir, TerminatingFile)
}

func (s *Sentinels) workingPath() string {
	return filepath.Join(s.dir, WorkingFile)
}

// IsTerminating reports whether the terminating flag file exists.
func (s *Sentinels) IsTerminating() bool {
	_, err := os.Stat(s.terminatingPath())
	return err == nil
}

// SetTerminating writes the terminating flag. The signal handler uses this
// when the pod has no PreStop hook, e.g. running outside Kubernetes.
func (s *Sentinels) SetTerminating() {
	if err := os.WriteFile(s.terminatingPath(), nil, 0644); err != nil {
		klog.ErrorS(err, "failed to write the terminating sentinel")
	}
}

func (s *Sentinels) MarkWorking() {
	if err := os.WriteFile(s.workingPath(), nil, 0644); err != nil {
		klog.ErrorS(err, "failed to write the working sentinel")
	}
}

func (s *Sentinels) ClearWorking() {
	if err := os.Remove(s.workingPath()); err != nil && !os.IsNotExist(err) {
		klog.ErrorS(err, "failed to remove the working sentinel")
	}
}

// Purge deletes everything in the working directory except the sentinel
// files. Service images leave shapefiles, operation dumps and scratch data
// behind; left alone they get the pod evicted for ephemeral-storage use.
func (s *Sentinels) Purge() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		klog.ErrorS(err, "failed to read the working directory", "dir", s.dir)
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == TerminatingFile || name == WorkingFile {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
			klog.ErrorS(err, "failed to purge a working directory entry", "name", name)
		}
	}
}

// WatchTerminating signals ch (closing it) as soon as the terminating flag
// appears. A filesystem watch gives sub-second latency; the 1s tick covers
// filesystems that do not deliver events.
func (s *Sentinels) WatchTerminating(tomb *channel.Tomb, ch chan struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err = watcher.Add(s.dir); err != nil {
			watcher.Close()
			watcher = nil
		}
	} else {
		watcher = nil
	}
	if watcher == nil {
		klog.Warningf("filesystem watch on %s unavailable, relying on polling", s.dir)
	}

	go func() {
		if watcher != nil {
			defer watcher.Close()
		}
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		var events <-chan fsnotify.Event
		if watcher != nil {
			events = watcher.Events
		}
		for {
			select {
			case <-tomb.Stopping():
				return
			case event := <-events:
				if filepath.Base(event.Name) != TerminatingFile {
					continue
				}
			case <-ticker.C:
			}
			if s.IsTerminating() {
				close(ch)
				return
			}
		}
	}()
}

// TrapSignals converts SIGTERM and SIGINT into the terminating sentinel so a
// worker without a PreStop hook still winds down cleanly.
func (s *Sentinels) TrapSignals() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-signals
		klog.Infof("received signal %s, marking the worker terminating", sig)
		s.SetTerminating()
	}()
}
