package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Value is a float64 that may be absent. Missing upstream fields, unparseable
// numbers and indicator warm-up periods are all represented by the zero Value
// rather than by a sentinel number.
type Value struct {
	v     float64
	valid bool
}

// Some wraps v. NaN and infinities are treated as absent.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{v: v, valid: true}
}

// None returns the absent Value.
func None() Value {
	return Value{}
}

// ParseValue parses a decimal string. Empty or unparseable input yields None.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return None()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return None()
	}
	return Some(f)
}

// Get returns the wrapped number and whether it is present.
func (x Value) Get() (float64, bool) {
	return x.v, x.valid
}

// Valid reports whether the value is present.
func (x Value) Valid() bool {
	return x.valid
}

// Float returns the number, or NaN when absent.
func (x Value) Float() float64 {
	if !x.valid {
		return math.NaN()
	}
	return x.v
}

// Sub returns x - y, absent when either operand is absent.
func (x Value) Sub(y Value) Value {
	if !x.valid || !y.valid {
		return None()
	}
	return Some(x.v - y.v)
}

// GreaterThan compares x > y. ok is false when either operand is absent, in
// which case the caller decides which label the comparison resolves to.
func (x Value) GreaterThan(y Value) (result, ok bool) {
	if !x.valid || !y.valid {
		return false, false
	}
	return x.v > y.v, true
}

// LessThan compares x < y with the same absence rule as GreaterThan.
func (x Value) LessThan(y Value) (result, ok bool) {
	if !x.valid || !y.valid {
		return false, false
	}
	return x.v < y.v, true
}

// Format renders the value with prec decimals, or an empty string when absent.
// A negative prec uses the shortest representation that round-trips.
func (x Value) Format(prec int) string {
	if !x.valid {
		return ""
	}
	return strconv.FormatFloat(x.v, 'f', prec, 64)
}

// String implements fmt.Stringer.
func (x Value) String() string {
	if !x.valid {
		return "n/a"
	}
	return strconv.FormatFloat(x.v, 'f', -1, 64)
}

// UnmarshalJSON accepts a JSON number, a numeric string or null. Anything else
// decodes to None instead of failing the surrounding record.
func (x *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*x = None()
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*x = None()
			return nil
		}
		*x = ParseValue(s)
		return nil
	}
	*x = ParseValue(string(data))
	return nil
}

// MarshalJSON writes null for an absent value.
func (x Value) MarshalJSON() ([]byte, error) {
	if !x.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(x.v, 'f', -1, 64)), nil
}
