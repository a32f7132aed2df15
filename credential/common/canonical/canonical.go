// Package canonical produces the deterministic byte form of a credential that is
// hashed and signed.
//
// Only top-level object keys are sorted. Nested objects keep the order in which
// they were marshalled, which for Go structs is the field declaration order.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/exp/slices"
)

// Canonicalize serializes v and re-emits its top-level object with keys in
// lexicographic order. v must marshal to a JSON object.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to canonicalize document: top level must be an object: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("failed to canonicalize document: document is null")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(fields[k])
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Marshal encodes v as compact JSON without HTML escaping, matching the output of
// a browser's JSON.stringify for the same value.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
