package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ToString converts a raw value to its string form.
func ToString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case fmt.Stringer:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int32, int16, int8, uint, uint64, uint32, uint16, uint8:
		return fmt.Sprint(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case []string:
		return strings.Join(val, ","), nil
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			s, err := ToString(item)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), nil
	default:
		return "", &TypeCoercionError{Value: v, Target: "string"}
	}
}

// ToInt64 converts a raw value to an int64.
func ToInt64(v any) (int64, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case int32:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return 0, &TypeCoercionError{Value: v, Target: "int64"}
		}
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return 0, &TypeCoercionError{Value: v, Target: "int64"}
		}
		return int64(val), nil
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if val != math.Trunc(val) || val >= math.MaxInt64 || val < math.MinInt64 {
			return 0, &TypeCoercionError{Value: v, Target: "int64"}
		}
		return int64(val), nil
	case float32:
		return ToInt64(float64(val))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, &TypeCoercionError{Value: v, Target: "int64", Err: err}
		}
		return n, nil
	default:
		return 0, &TypeCoercionError{Value: v, Target: "int64"}
	}
}

// ToInt converts a raw value to an int.
func ToInt(v any) (int, error) {
	n, err := ToInt64(v)
	if err != nil {
		if ce, ok := err.(*TypeCoercionError); ok {
			ce.Target = "int"
		}
		return 0, err
	}
	if n > math.MaxInt || n < math.MinInt {
		return 0, &TypeCoercionError{Value: v, Target: "int"}
	}
	return int(n), nil
}

// ToFloat64 converts a raw value to a float64.
func ToFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, &TypeCoercionError{Value: v, Target: "float64", Err: err}
		}
		return f, nil
	default:
		return 0, &TypeCoercionError{Value: v, Target: "float64"}
	}
}

// ToBool converts a raw value to a bool.
// Strings accept the strconv forms plus yes/no and on/off.
func ToBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "yes", "on":
			return true, nil
		case "no", "off":
			return false, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false, &TypeCoercionError{Value: v, Target: "bool", Err: err}
		}
		return b, nil
	default:
		return false, &TypeCoercionError{Value: v, Target: "bool"}
	}
}

// ToDuration converts a raw value to a time.Duration.
// Bare numbers are interpreted as milliseconds.
func ToDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(n) * time.Millisecond, nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, &TypeCoercionError{Value: v, Target: "duration", Err: err}
		}
		return d, nil
	case float64:
		return time.Duration(val * float64(time.Millisecond)), nil
	default:
		n, err := ToInt64(v)
		if err != nil {
			return 0, &TypeCoercionError{Value: v, Target: "duration"}
		}
		return time.Duration(n) * time.Millisecond, nil
	}
}

// ToStringSlice converts a raw value to a slice of strings.
// Strings are split on commas with surrounding space trimmed and empty items dropped.
func ToStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, err := ToString(item)
			if err != nil {
				return nil, &TypeCoercionError{Value: v, Target: "[]string", Err: err}
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return SplitList(val), nil
	default:
		s, err := ToString(v)
		if err != nil {
			return nil, &TypeCoercionError{Value: v, Target: "[]string"}
		}
		return SplitList(s), nil
	}
}

// SplitList splits a comma-separated list, trimming items and dropping empty ones.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
