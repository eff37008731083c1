package store

import (
	"crypto/sha256"
	"emsp/utility"
	"encoding/hex"
	"sort"
)

// Fingerprint hashes the canonical encoding of a document; identical content gives an identical value.
func Fingerprint(data map[string]any) (string, error) {
	b, err := utility.Json.Marshal(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func CloneDocument(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneDocument(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func sortResources(items []*Resource) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].LastUpdated.Equal(items[j].LastUpdated) {
			return items[i].LastUpdated.Before(items[j].LastUpdated)
		}
		return items[i].Key.String() < items[j].Key.String()
	})
}

func page(items []*Resource, offset, limit int) []*Resource {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []*Resource{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
