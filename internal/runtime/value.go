package runtime

import (
	"fmt"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Kind classifies a scalar value. Only the four scalar kinds can cross
// the host boundary; everything else (tables, functions, userdata) is
// readable as a display string but never writable.
type Kind int

// Scalar value kinds.
const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	default:
		return "invalid"
	}
}

// CompatibleWith reports whether a value of kind k may overwrite a
// binding of kind other. Integer and float belong to the same numeric
// family and are interchangeable; all other combinations require an
// exact match.
func (k Kind) CompatibleWith(other Kind) bool {
	if k == KindInvalid || other == KindInvalid {
		return false
	}
	if k == other {
		return true
	}
	return k.isNumeric() && other.isNumeric()
}

func (k Kind) isNumeric() bool {
	return k == KindInt || k == KindFloat
}

// Value is a host-neutral representation of a Lua value. Scalars carry
// their data in the field matching Kind; non-scalars carry only Type and
// Display.
type Value struct {
	Kind    Kind
	Str     string
	Int     int64
	Float   float64
	Bool    bool
	Type    string // Lua type name: "number", "string", "table", ...
	Display string // human-readable rendering
}

// IsScalar reports whether the value is one of the writable kinds.
func (v Value) IsScalar() bool {
	return v.Kind != KindInvalid
}

// String returns the display rendering.
func (v Value) String() string {
	return v.Display
}

// StringValue builds a string Value.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s, Type: "string", Display: strconv.Quote(s)}
}

// IntValue builds an integer Value.
func IntValue(i int64) Value {
	return Value{Kind: KindInt, Int: i, Type: "number", Display: strconv.FormatInt(i, 10)}
}

// FloatValue builds a float Value.
func FloatValue(f float64) Value {
	return Value{Kind: KindFloat, Float: f, Type: "number", Display: strconv.FormatFloat(f, 'g', -1, 64)}
}

// BoolValue builds a boolean Value.
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b, Type: "boolean", Display: strconv.FormatBool(b)}
}

// ValueOf converts a Lua value. Numbers with no fractional part become
// integers, everything else stays a float. Non-scalar values yield a
// Value with KindInvalid and a descriptive Display.
func ValueOf(lv lua.LValue) Value {
	switch v := lv.(type) {
	case lua.LBool:
		return BoolValue(bool(v))
	case lua.LString:
		return StringValue(string(v))
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return IntValue(int64(f))
		}
		return FloatValue(f)
	case *lua.LTable:
		return Value{Type: "table", Display: fmt.Sprintf("table (len %d)", v.Len())}
	case *lua.LFunction:
		return Value{Type: "function", Display: "function"}
	case *lua.LUserData:
		return Value{Type: "userdata", Display: "userdata"}
	default:
		if lv == lua.LNil {
			return Value{Type: "nil", Display: "nil"}
		}
		return Value{Type: lv.Type().String(), Display: lv.Type().String()}
	}
}

// ToLValue converts a scalar Value to its Lua representation. Returns
// false for non-scalar values.
func ToLValue(v Value) (lua.LValue, bool) {
	switch v.Kind {
	case KindString:
		return lua.LString(v.Str), true
	case KindInt:
		return lua.LNumber(v.Int), true
	case KindFloat:
		return lua.LNumber(v.Float), true
	case KindBool:
		return lua.LBool(v.Bool), true
	default:
		return lua.LNil, false
	}
}

// ParseLiteral interprets user input as a scalar Value. Booleans and
// numbers are recognized by form; single- or double-quoted text becomes
// a string with the quotes stripped; anything else is taken as a bare
// string.
func ParseLiteral(s string) Value {
	s = strings.TrimSpace(s)
	switch s {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return StringValue(s[1 : len(s)-1])
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatValue(f)
	}
	return StringValue(s)
}
