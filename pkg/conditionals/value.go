package conditionals

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// Kind identifies which scalar a Value holds.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindBool
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	default:
		return "invalid"
	}
}

// Value is a game variable value: exactly one of string, integer, boolean, or float.
// It marshals to the bare JSON scalar so save files and scene content stay readable.
type Value struct {
	kind Kind
	s    string
	i    int64
	b    bool
	f    float64
}

func String(s string) Value   { return Value{kind: KindString, s: s} }
func Int(i int64) Value       { return Value{kind: KindInt, i: i} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Float(f float64) Value   { return Value{kind: KindFloat, f: f} }
func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsString returns the string payload and whether the value is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsInt returns the integer payload and whether the value is an integer.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsBool returns the boolean payload and whether the value is a boolean.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsFloat returns the value as a float64. Integers are widened.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// Equal reports whether two values hold the same scalar.
// Integers and floats compare numerically.
func (v Value) Equal(o Value) bool {
	if v.isNumeric() && o.isNumeric() {
		if v.kind == KindInt && o.kind == KindInt {
			return v.i == o.i
		}
		a, _ := v.AsFloat()
		b, _ := o.AsFloat()
		return a == b
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

func (v Value) isNumeric() bool {
	return v.kind == KindInt || v.kind == KindFloat
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON writes the bare scalar; an invalid value is written as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInt:
		return json.Marshal(v.i)
	case KindBool:
		return json.Marshal(v.b)
	case KindFloat:
		return json.Marshal(v.f)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string, boolean, or number. Numbers without a
// fractional part or exponent decode as integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("game variable: %w", err)
	}

	switch t := tok.(type) {
	case nil:
		*v = Value{}
	case string:
		*v = String(t)
	case bool:
		*v = Bool(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			*v = Int(i)
			return nil
		}
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("game variable: invalid number %q", t.String())
		}
		*v = Float(f)
	default:
		return fmt.Errorf("game variable: unsupported JSON value %s", string(data))
	}
	return nil
}

// Vars holds game variables by name. Variables only grow during a playthrough;
// a load replaces the whole map.
type Vars map[string]Value

// Merge writes every entry of other into vs. Existing keys are overwritten,
// new keys added, and unrelated keys left alone.
func (vs Vars) Merge(other Vars) {
	maps.Copy(vs, other)
}

// Clone returns an independent copy. A nil map clones to an empty one.
func (vs Vars) Clone() Vars {
	out := make(Vars, len(vs))
	maps.Copy(out, vs)
	return out
}

// Get returns the value stored under key.
func (vs Vars) Get(key string) (Value, bool) {
	v, ok := vs[key]
	return v, ok
}
