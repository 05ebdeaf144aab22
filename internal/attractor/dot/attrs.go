package dot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AttrType is one of the typed attribute kinds §4.1 specifies. DOT itself
// only ever lexes string literals; coercion is a second pass applied by
// whichever caller knows what type a given attribute key is supposed to be.
type AttrType int

const (
	TypeString AttrType = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeDuration
)

// CoerceAttr converts raw — a value as stored in Node/Edge.Attrs — to the
// requested type. Duration accepts Go's suffixed literal syntax (10s, 2m,
// 1h30m) via time.ParseDuration.
func CoerceAttr(raw string, t AttrType) (any, error) {
	raw = strings.TrimSpace(raw)
	switch t {
	case TypeString:
		return raw, nil
	case TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("dot: attribute %q is not an integer", raw)
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("dot: attribute %q is not a float", raw)
		}
		return f, nil
	case TypeBoolean:
		switch strings.ToLower(raw) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0", "":
			return false, nil
		default:
			return nil, fmt.Errorf("dot: attribute %q is not a boolean", raw)
		}
	case TypeDuration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("dot: attribute %q is not a duration: %w", raw, err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("dot: unknown attribute type %d", t)
	}
}

// AttrSchema maps the node/edge attribute keys the runtime engine reads to
// the type they coerce to, so handler code reads strongly typed values
// instead of re-parsing strconv/time.ParseDuration calls at each call site.
// Keys absent from the schema stay raw strings.
var AttrSchema = map[string]AttrType{
	"weight":                TypeFloat,
	"max_retries":           TypeInteger,
	"max_parallel":          TypeInteger,
	"max_loop_restarts":     TypeInteger,
	"goal_gate":             TypeBoolean,
	"goal_gate_partial_ok":  TypeBoolean,
	"loop_restart":          TypeBoolean,
	"human.timeout_seconds": TypeDuration,
	"backoff_base":          TypeDuration,
	"backoff_max":           TypeDuration,
	"backoff_jitter":        TypeBoolean,
	"poll_interval":         TypeDuration,
	"max_cycle_timeout":     TypeDuration,
	"quorum":                TypeInteger,
	"tool.timeout":          TypeDuration,
}

// CoercedAttr reads key from attrs and coerces it per AttrSchema (or as a
// plain string if the key has no schema entry). ok reports whether the key
// was present at all.
func CoercedAttr(attrs map[string]string, key string) (value any, ok bool, err error) {
	raw, present := attrs[key]
	if !present {
		return nil, false, nil
	}
	t, known := AttrSchema[key]
	if !known {
		t = TypeString
	}
	v, err := CoerceAttr(raw, t)
	if err != nil {
		return nil, true, err
	}
	return v, true, nil
}

// IntAttr returns attrs[key] coerced to an integer, or def if absent or
// malformed.
func IntAttr(attrs map[string]string, key string, def int) int {
	v, ok, err := CoercedAttr(attrs, key)
	if !ok || err != nil {
		return def
	}
	n, isInt := v.(int64)
	if !isInt {
		return def
	}
	return int(n)
}

// FloatAttr returns attrs[key] coerced to a float64, or def if absent or
// malformed.
func FloatAttr(attrs map[string]string, key string, def float64) float64 {
	v, ok, err := CoercedAttr(attrs, key)
	if !ok || err != nil {
		return def
	}
	f, isFloat := v.(float64)
	if !isFloat {
		return def
	}
	return f
}

// BoolAttr returns attrs[key] coerced to a bool, or def if absent or
// malformed.
func BoolAttr(attrs map[string]string, key string, def bool) bool {
	v, ok, err := CoercedAttr(attrs, key)
	if !ok || err != nil {
		return def
	}
	b, isBool := v.(bool)
	if !isBool {
		return def
	}
	return b
}

// DurationAttr returns attrs[key] coerced to a time.Duration, or def if
// absent or malformed.
func DurationAttr(attrs map[string]string, key string, def time.Duration) time.Duration {
	v, ok, err := CoercedAttr(attrs, key)
	if !ok || err != nil {
		return def
	}
	d, isDuration := v.(time.Duration)
	if !isDuration {
		return def
	}
	return d
}
