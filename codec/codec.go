// Package codec converts upload info fields to and from their column
// representations.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"go.lumeweb.com/infostore/core"
)

// Int64 converts an offset or length to a BIGINT value.
func Int64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: value %d exceeds the signed 64-bit range", core.ErrSerialization, v)
	}
	return int64(v), nil
}

// Uint64 converts a stored BIGINT back to an offset or length.
func Uint64(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("%w: stored value %d is negative", core.ErrSerialization, v)
	}
	return uint64(v), nil
}

func Int64Ptr(v *uint64) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	i, err := Int64(*v)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func Uint64Ptr(v *int64) (*uint64, error) {
	if v == nil {
		return nil, nil
	}
	u, err := Uint64(*v)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EncodeMetadata always produces a JSON object; nil encodes as {}.
func EncodeMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSerialization, err)
	}
	return data, nil
}

// DecodeMetadata accepts only a JSON object with string values.
func DecodeMetadata(data []byte) (map[string]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: metadata is not a JSON object", core.ErrSerialization)
	}

	metadata := make(map[string]string)
	if err := json.Unmarshal(trimmed, &metadata); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSerialization, err)
	}
	return metadata, nil
}

// Parts maps an empty list to nil so it is stored as SQL NULL.
func Parts(parts []string) []string {
	if len(parts) == 0 {
		return nil
	}
	return parts
}

// EncodeParts is the JSON form of Parts for backends without array columns.
func EncodeParts(parts []string) ([]byte, error) {
	parts = Parts(parts)
	if parts == nil {
		return nil, nil
	}
	data, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSerialization, err)
	}
	return data, nil
}

func DecodeParts(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var parts []string
	if err := json.Unmarshal(trimmed, &parts); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSerialization, err)
	}
	return Parts(parts), nil
}
