package service

// toFloat coerces the numeric types that survive JSON decoding (and the Go
// literals tests use) to float64. Non-numeric values report ok=false and are
// treated as absent by callers, never as errors.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// looseEqual compares a context value against a condition value. Numbers are
// compared by value regardless of concrete type, since policy documents
// decode to float64 while handler contexts may carry ints. Everything else
// is compared by direct equality; incomparable types compare unequal instead
// of panicking.
func looseEqual(got, expected any) bool {
	if gf, ok := toFloat(got); ok {
		if ef, ok := toFloat(expected); ok {
			return gf == ef
		}
		return false
	}

	switch g := got.(type) {
	case string:
		e, ok := expected.(string)
		return ok && g == e
	case bool:
		e, ok := expected.(bool)
		return ok && g == e
	case nil:
		return expected == nil
	default:
		// Slices and maps are not meaningfully comparable in exact-match
		// conditions; treat them as non-matching.
		return false
	}
}
