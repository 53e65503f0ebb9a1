package settings

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// A stored setting value may arrive in any of these shapes, depending on which
// code path wrote it:
//
//  1. a bare scalar:             42, "42", true, "DZD"
//  2. a value wrapper:           {"value": 42}
//  3. a key-named wrapper:       {"vat_rate": 19} for key "vat_rate"
//  4. any of the above encoded once more as a JSON string: "{\"value\": 42}"
//
// ExtractValue peels wrappers off; ExtractPrimitive additionally requires a scalar.

const maxUnwrapDepth = 4

// ExtractValue unwraps raw according to the accepted shapes. The result may be
// a scalar, an array or an object that is not a wrapper.
func ExtractValue(raw any, key string) (any, bool) {
	return unwrap(raw, key, 0)
}

func unwrap(raw any, key string, depth int) (any, bool) {
	if depth > maxUnwrapDepth {
		return nil, false
	}
	switch v := raw.(type) {
	case nil:
		return nil, false
	case json.RawMessage:
		return unwrapJSON(v, key, depth)
	case []byte:
		return unwrapJSON(v, key, depth)
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, `"`) {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return unwrap(decoded, key, depth+1)
			}
		}
		return v, true
	case map[string]any:
		if inner, ok := v["value"]; ok {
			return unwrap(inner, key, depth+1)
		}
		if key != "" {
			if inner, ok := v[key]; ok {
				return unwrap(inner, key, depth+1)
			}
		}
		return v, true
	default:
		return v, true
	}
}

func unwrapJSON(data []byte, key string, depth int) (any, bool) {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		// not JSON at all: treat the text as a bare scalar
		return unwrap(string(data), key, depth+1)
	}
	return unwrap(decoded, key, depth+1)
}

// ExtractPrimitive returns the scalar carried by raw, or false when raw is
// absent, an unrecognized wrapper, or not a scalar.
func ExtractPrimitive(raw any, key string) (any, bool) {
	v, ok := ExtractValue(raw, key)
	if !ok {
		return nil, false
	}
	switch v.(type) {
	case string, bool, float64, float32, int, int64, json.Number:
		return v, true
	default:
		return nil, false
	}
}

// ParseNumberSetting extracts a finite number, else returns def.
func ParseNumberSetting(raw any, key string, def float64) float64 {
	v, ok := ExtractPrimitive(raw, key)
	if !ok {
		return def
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

// ParseIntSetting is ParseNumberSetting truncated to an integer. Values outside
// the int64 range return def.
func ParseIntSetting(raw any, key string, def int64) int64 {
	f := ParseNumberSetting(raw, key, math.NaN())
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return def
	}
	return int64(f)
}

// ParseBooleanSetting accepts booleans, 0/1 and the usual textual spellings.
// Anything else returns def.
func ParseBooleanSetting(raw any, key string, def bool) bool {
	v, ok := ExtractPrimitive(raw, key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
		return def
	default:
		f, ok := toFloat(b)
		if !ok {
			return def
		}
		switch f {
		case 1:
			return true
		case 0:
			return false
		}
		return def
	}
}

// ParseStringSetting returns the trimmed string, or def when blank or not a string.
func ParseStringSetting(raw any, key string, def string) string {
	v, ok := ExtractPrimitive(raw, key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseStored decodes the JSON text kept in a settings row. Text that is not
// JSON (e.g. an unquoted currency code) is returned as a string.
func parseStored(value string) any {
	var decoded any
	if err := json.Unmarshal([]byte(value), &decoded); err != nil {
		return value
	}
	return decoded
}

func wrapValue(v any) (string, error) {
	data, err := json.Marshal(map[string]any{"value": v})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
