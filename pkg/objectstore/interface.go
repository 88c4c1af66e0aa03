/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package objectstore reads and writes the artifacts the workers exchange
// with the backend services: STAC catalogs, error.json descriptors, and
// captured service logs. All object references are s3:// URLs.
package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Interface is the object store contract the worker and sidecar runner rely
// on. Implementations must tolerate missing objects on ObjectExists without
// returning an error.
type Interface interface {
	GetObject(ctx context.Context, objectURL string) ([]byte, error)
	PutObject(ctx context.Context, objectURL string, data []byte) error
	ObjectExists(ctx context.Context, objectURL string) (bool, error)
	// ListObjects returns the full s3:// URLs of every object under the
	// prefix URL, in lexical key order.
	ListObjects(ctx context.Context, prefixURL string) ([]string, error)
}

// Location is a parsed s3:// URL.
type Location struct {
	Bucket string
	Key    string
}

// ParseURL splits an s3://bucket/key URL.
func ParseURL(objectURL string) (*Location, error) {
	u, err := url.Parse(objectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid object URL %q: %w", objectURL, err)
	}
	if u.Scheme != "s3" {
		return nil, fmt.Errorf("object URL %q must use the s3 scheme", objectURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("object URL %q is missing a bucket", objectURL)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return nil, fmt.Errorf("object URL %q is missing a key", objectURL)
	}
	return &Location{Bucket: u.Host, Key: key}, nil
}

// JoinURL appends path elements to an s3:// base URL.
func JoinURL(base string, elements ...string) string {
	joined := strings.TrimSuffix(base, "/")
	for _, e := range elements {
		joined = joined + "/" + strings.Trim(e, "/")
	}
	return joined
}
