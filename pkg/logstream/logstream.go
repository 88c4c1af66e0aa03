/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package logstream captures the sidecar's stdout during an execution. Lines
// are kept verbatim for upload to the object store and mirrored to the
// structured logger so service output shows up in the pod logs.
package logstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/objectstore"
)

// Stream is a write-only sink attached to the sidecar's stdout. It is safe
// for the exec callback to write while the main loop reads.
type Stream struct {
	logger klog.Logger

	mu sync.Mutex
	// entries holds JSON objects (as maps) and plain strings, in arrival
	// order. The first entry is the retry header.
	entries   []interface{}
	remainder string
}

// NewStream builds a stream for one execution attempt of a work item. The
// header line lets readers of an appended log file tell attempts apart.
func NewStream(logger klog.Logger, workItemID int64, retryCount int) *Stream {
	return &Stream{
		logger: logger,
		entries: []interface{}{
			fmt.Sprintf("Start of service execution (retryCount=%d, id=%d)", retryCount, workItemID),
		},
	}
}

// Write accepts a chunk of sidecar stdout. Chunks may end mid-line; the
// partial tail is held until the next chunk or Flush completes it.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := s.remainder + string(p)
	lines := strings.Split(text, "\n")
	s.remainder = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		s.appendLine(line)
	}
	return len(p), nil
}

// Flush records any buffered partial line. Call after the sidecar exits.
func (s *Stream) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remainder != "" {
		s.appendLine(s.remainder)
		s.remainder = ""
	}
}

// appendLine stores one line and mirrors it to the logger at debug. JSON
// lines keep their fields, with timestamp and level renamed so they cannot
// collide with the wrapper's own.
func (s *Stream) appendLine(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err == nil && entry != nil {
		if v, ok := entry["timestamp"]; ok {
			entry["workerTimestamp"] = v
			delete(entry, "timestamp")
		}
		if v, ok := entry["level"]; ok {
			entry["workerLevel"] = v
			delete(entry, "level")
		}
		s.entries = append(s.entries, entry)
	} else {
		s.entries = append(s.entries, line)
	}
	s.logger.V(4).Info(line, "worker", true)
}

// Entries returns a snapshot of the captured log entries.
func (s *Stream) Entries() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]interface{}, len(s.entries))
	copy(snapshot, s.entries)
	return snapshot
}

// Upload writes the captured entries to logsURL as a JSON array. A retried
// work item appends to the previous attempt's file instead of replacing it.
func (s *Stream) Upload(ctx context.Context, store objectstore.Interface, logsURL string) error {
	s.Flush()
	entries := s.Entries()

	exists, err := store.ObjectExists(ctx, logsURL)
	if err != nil {
		return err
	}
	if exists {
		data, err := store.GetObject(ctx, logsURL)
		if err != nil {
			return err
		}
		var previous []interface{}
		if err := json.Unmarshal(data, &previous); err != nil {
			return fmt.Errorf("failed to parse existing log file %s: %w", logsURL, err)
		}
		entries = append(previous, entries...)
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return store.PutObject(ctx, logsURL, data)
}

// LogsURL is the deterministic per-work-item log object location.
func LogsURL(artifactBucket, jobID string, workItemID int64) string {
	return objectstore.JoinURL("s3://"+artifactBucket, jobID, fmt.Sprintf("%d", workItemID), "logs.json")
}
