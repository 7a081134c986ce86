package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number decodes a JSON number or numeric string. Anything else, null included,
// decodes as absent instead of failing the enclosing document.
type Number struct {
	Value float64
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = s
	}
	if f, ok := ParseNumber(raw); ok {
		n.Value, n.Set = f, true
	}
	return nil
}

// Ptr returns the value, or nil when absent.
func (n Number) Ptr() *float64 {
	if !n.Set {
		return nil
	}
	v := n.Value
	return &v
}

// ParseNumber parses a finite decimal number, ignoring surrounding space.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func firstSet(values ...Number) float64 {
	for _, v := range values {
		if v.Set {
			return v.Value
		}
	}
	return 0
}
