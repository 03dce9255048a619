package snapshot

import (
	"maps"
	"time"
)

// DeepMerge returns base with override merged on top. Nested objects are
// merged key by key; any other override value replaces the base value.
// Keys present only in base are kept. Neither input is modified.
func DeepMerge(base, override map[string]any) map[string]any {
	merged := maps.Clone(base)
	if merged == nil {
		merged = make(map[string]any, len(override))
	}
	for k, v := range override {
		bv, okBase := merged[k].(map[string]any)
		ov, okOverride := v.(map[string]any)
		if okBase && okOverride {
			merged[k] = DeepMerge(bv, ov)
			continue
		}
		merged[k] = v
	}
	return merged
}

// Normalize rewrites time values anywhere inside v as ISO-8601 strings so
// the document encodes the same way whichever client produced it. Other
// values, json.Number included, are returned as they are.
func Normalize(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(time.RFC3339Nano)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	default:
		return v
	}
}
