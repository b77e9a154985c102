package majestic

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Params holds operation input supplied by the host platform.
type Params map[string]any

// BuildPayload returns a copy of params without nil or empty-string values.
func BuildPayload(params Params) Params {
	payload := make(Params, len(params))
	for key, val := range params {
		if val == nil {
			continue
		}
		if s, ok := val.(string); ok && s == "" {
			continue
		}
		payload[key] = val
	}
	return payload
}

// Int returns the integer stored under key. ok is false when the key is absent.
func (p Params) Int(key string) (n int, ok bool, err error) {
	val, found := p[key]
	if !found || val == nil {
		return 0, false, nil
	}

	switch v := val.(type) {
	case int:
		return v, true, nil
	case int32:
		return int(v), true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, true, fmt.Errorf("%s must be an integer, got %v", key, v)
		}
		// float64(math.MaxInt) rounds up to 2^63, so the upper bound is exclusive.
		if v < math.MinInt || v >= math.MaxInt {
			return 0, true, fmt.Errorf("%s is out of range, got %v", key, v)
		}
		return int(v), true, nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return int(i), true, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s must be an integer, got %T", key, val)
	}
}

func (p Params) stringValue(key string) string {
	return fmt.Sprint(p[key])
}
