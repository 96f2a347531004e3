package command

import (
	"strconv"
	"time"
)

// Description is a raw, not yet inflated instruction as decoded from a
// document: a map with at least a "type" key.
type Description map[string]any

// Type returns the instruction type, or "".
func (d Description) Type() string {
	return d.String("type", "")
}

// String returns the string value at key, or def.
func (d Description) String(key, def string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return def
}

// Int returns the integer value at key, or def. Numeric strings are
// accepted since document authors quote numbers freely.
func (d Description) Int(key string, def int) int {
	switch v := d[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the boolean value at key, or def.
func (d Description) Bool(key string, def bool) bool {
	if v, ok := d[key].(bool); ok {
		return v
	}
	return def
}

// Millis returns the integer at key as a duration in milliseconds.
// Negative values become zero.
func (d Description) Millis(key string) time.Duration {
	ms := d.Int(key, 0)
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}

// List returns the descriptions at key. A single map is treated as a list
// of one. Entries that are not maps are skipped.
func (d Description) List(key string) []Description {
	return ToDescriptions(d[key])
}

// Values returns the slice at key, or a one-element slice for a scalar.
func (d Description) Values(key string) []any {
	switch v := d[key].(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

// ToDescriptions converts decoded YAML (a map or a list of maps) into
// descriptions.
func ToDescriptions(v any) []Description {
	switch t := v.(type) {
	case nil:
		return nil
	case Description:
		return []Description{t}
	case map[string]any:
		return []Description{Description(t)}
	case []Description:
		return t
	case []map[string]any:
		out := make([]Description, 0, len(t))
		for _, m := range t {
			out = append(out, Description(m))
		}
		return out
	case []any:
		out := make([]Description, 0, len(t))
		for _, item := range t {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, Description(m))
			case Description:
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
