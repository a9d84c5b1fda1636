package predictor

import (
	"encoding/json"
	"fmt"
	"math"
)

// maxUnwrap bounds how many nested Scalar wrappers are peeled off.
const maxUnwrap = 8

// scalarTag marks a wrapped numeric scalar on the bridge wire format:
// {"__scalar__": "float32", "value": 1.5}.
const scalarTag = "__scalar__"

// Scalar is implemented by library-specific numeric wrappers that can
// report their plain Go value.
type Scalar interface {
	Item() any
}

// Normalize converts wrapped scalar values in raw to plain numbers.
// Values that are not scalar wrappers pass through unchanged.
func Normalize(raw map[string]any) Result {
	out := make(Result, len(raw))
	for name, v := range raw {
		out[name] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case Scalar:
		item := x.Item()
		for i := 1; i < maxUnwrap; i++ {
			inner, ok := item.(Scalar)
			if !ok {
				return normalizeValue(item)
			}
			item = inner.Item()
		}
		if _, ok := item.(Scalar); ok {
			return fmt.Sprint(item)
		}
		return normalizeValue(item)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		if _, tagged := x[scalarTag]; tagged {
			if inner, ok := x["value"]; ok {
				if name, ok := inner.(string); ok {
					if f, ok := nonFinite(name); ok {
						return f
					}
				}
				return normalizeValue(inner)
			}
		}
		return x
	case float32:
		return float64(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return uint64ToNumber(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return uint64ToNumber(x)
	}
	return v
}

func uint64ToNumber(u uint64) any {
	if u > 1<<63-1 {
		return float64(u)
	}
	return int64(u)
}

// nonFinite decodes the names the bridge uses for floats JSON cannot carry.
func nonFinite(name string) (float64, bool) {
	switch name {
	case "nan":
		return math.NaN(), true
	case "inf":
		return math.Inf(1), true
	case "-inf":
		return math.Inf(-1), true
	}
	return 0, false
}
