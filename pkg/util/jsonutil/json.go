/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package jsonutil

import (
	"bytes"
	"encoding/json"
)

// UnmarshalWithCheck decodes data into v and rejects unknown fields, so
// malformed work-protocol payloads fail loudly instead of half-parsing.
func UnmarshalWithCheck(data []byte, v interface{}) error {
	d := json.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(v); err != nil {
		return err
	}
	return nil
}

// MarshalSilently returns the JSON encoding of v, or nil when v is nil or
// cannot be encoded. Used for log fields where failure is not actionable.
func MarshalSilently(v interface{}) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// DeepCopy clones src into dst through a JSON round trip. The data operation
// is defined with deep value semantics, and every field it carries is
// JSON-serializable, so the round trip is a faithful clone.
func DeepCopy(src, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
