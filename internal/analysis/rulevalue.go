// internal/analysis/rulevalue.go
package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ruleKind uint8

const (
	kindBool ruleKind = iota + 1
	kindInt
	kindString
)

// RuleValue is a closed tagged union over the payload types a rule can
// carry: bool, int, or string. Unrecognized JSON shapes are rejected at
// decode time instead of being silently coerced.
type RuleValue struct {
	kind ruleKind
	b    bool
	i    int
	s    string
}

func BoolValue(v bool) RuleValue     { return RuleValue{kind: kindBool, b: v} }
func IntValue(v int) RuleValue       { return RuleValue{kind: kindInt, i: v} }
func StringValue(v string) RuleValue { return RuleValue{kind: kindString, s: v} }

func (v RuleValue) Bool() (bool, bool)     { return v.b, v.kind == kindBool }
func (v RuleValue) Int() (int, bool)       { return v.i, v.kind == kindInt }
func (v RuleValue) String() (string, bool) { return v.s, v.kind == kindString }

// IsZero reports whether the value was never set.
func (v RuleValue) IsZero() bool { return v.kind == 0 }

func (v RuleValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindBool:
		return json.Marshal(v.b)
	case kindInt:
		return json.Marshal(v.i)
	case kindString:
		return json.Marshal(v.s)
	}
	return nil, fmt.Errorf("analysis: marshal of unset rule value")
}

func (v *RuleValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ruleValueFrom(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ruleValueFrom converts a decoded JSON or YAML scalar into a RuleValue,
// rejecting nulls, fractions, objects, and arrays.
func ruleValueFrom(raw any) (RuleValue, error) {
	switch t := raw.(type) {
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case int:
		return IntValue(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(int(i)), nil
		}
		return RuleValue{}, fmt.Errorf("analysis: rule value %q is not an integer", t.String())
	case float64:
		if t == float64(int(t)) {
			return IntValue(int(t)), nil
		}
		return RuleValue{}, fmt.Errorf("analysis: rule value %v is not an integer", t)
	}
	return RuleValue{}, fmt.Errorf("analysis: unsupported rule value shape %T", raw)
}
