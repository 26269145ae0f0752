package forensic

// Helpers for pulling numbers and sub-objects out of the loosely-typed JSON a
// provider returns. Provider output has no guaranteed schema, so every lookup
// is parse-or-default rather than deserialize-or-fail.

// subMap returns the named child object, or nil if absent or not an object.
func subMap(raw map[string]interface{}, key string) map[string]interface{} {
	if raw == nil {
		return nil
	}
	if m, ok := raw[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}

// number reads a numeric field, reporting whether a usable number was present.
// JSON decoding yields float64, but int and float32 show up from tests and
// hand-built maps, so all three are accepted.
func number(m map[string]interface{}, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// numberOr reads a numeric field with a fallback default.
func numberOr(m map[string]interface{}, key string, def float64) float64 {
	if v, ok := number(m, key); ok {
		return v
	}
	return def
}

// clamp bounds v to the inclusive range [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
