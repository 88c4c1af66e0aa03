/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package objectstore

import (
	"context"
	"testing"

	"gotest.tools/assert"
)

func TestParseURL(t *testing.T) {
	loc, err := ParseURL("s3://artifacts/job-1/item-2/outputs/catalog0.json")
	assert.NilError(t, err)
	assert.Equal(t, loc.Bucket, "artifacts")
	assert.Equal(t, loc.Key, "job-1/item-2/outputs/catalog0.json")

	_, err = ParseURL("https://example.com/foo")
	assert.ErrorContains(t, err, "s3 scheme")
	_, err = ParseURL("s3://bucket-only")
	assert.ErrorContains(t, err, "missing a key")
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, JoinURL("s3://b/job/", "item", "outputs"), "s3://b/job/item/outputs")
	assert.Equal(t, JoinURL("s3://b", "logs.json"), "s3://b/logs.json")
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	url := "s3://artifacts/logs/item-1.json"

	exists, err := store.ObjectExists(ctx, url)
	assert.NilError(t, err)
	assert.Assert(t, !exists)

	assert.NilError(t, store.PutObject(ctx, url, []byte(`{"line":1}`)))
	exists, err = store.ObjectExists(ctx, url)
	assert.NilError(t, err)
	assert.Assert(t, exists)

	data, err := store.GetObject(ctx, url)
	assert.NilError(t, err)
	assert.Equal(t, string(data), `{"line":1}`)

	_, err = store.GetObject(ctx, "s3://artifacts/absent")
	assert.ErrorContains(t, err, "no such key")
}

func TestMemoryStoreListObjects(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	assert.NilError(t, store.PutObject(ctx, "s3://b/job/1/outputs/catalog1.json", []byte("{}")))
	assert.NilError(t, store.PutObject(ctx, "s3://b/job/1/outputs/catalog0.json", []byte("{}")))
	assert.NilError(t, store.PutObject(ctx, "s3://b/job/2/outputs/catalog0.json", []byte("{}")))

	urls, err := store.ListObjects(ctx, "s3://b/job/1/outputs/")
	assert.NilError(t, err)
	assert.DeepEqual(t, urls, []string{
		"s3://b/job/1/outputs/catalog0.json",
		"s3://b/job/1/outputs/catalog1.json",
	})
}
