/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Interface used by tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}}
}

func (m *MemoryStore) GetObject(_ context.Context, objectURL string) ([]byte, error) {
	loc, err := ParseURL(objectURL)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[loc.Bucket+"/"+loc.Key]
	if !ok {
		return nil, fmt.Errorf("failed to get %s: no such key", objectURL)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

func (m *MemoryStore) PutObject(_ context.Context, objectURL string, data []byte) error {
	loc, err := ParseURL(objectURL)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	m.objects[loc.Bucket+"/"+loc.Key] = copied
	return nil
}

func (m *MemoryStore) ListObjects(_ context.Context, prefixURL string) ([]string, error) {
	loc, err := ParseURL(prefixURL)
	if err != nil {
		return nil, err
	}
	prefix := loc.Bucket + "/" + loc.Key
	m.mu.RLock()
	defer m.mu.RUnlock()
	var urls []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			urls = append(urls, "s3://"+key)
		}
	}
	sort.Strings(urls)
	return urls, nil
}

func (m *MemoryStore) ObjectExists(_ context.Context, objectURL string) (bool, error) {
	loc, err := ParseURL(objectURL)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[loc.Bucket+"/"+loc.Key]
	return ok, nil
}
