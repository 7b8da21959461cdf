package sane

import (
	"fmt"

	"github.com/mzyy94/airsane/internal/sane/sys"
)

// ValueType is the type of an option.
type ValueType int

const (
	// TypeUnknown is any type code this package does not know, and the
	// type of the zero Value.
	TypeUnknown ValueType = iota
	TypeBool
	TypeInt
	TypeFixed
	TypeString
	TypeButton
	TypeGroup
)

func (t ValueType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFixed:
		return "fixed"
	case TypeString:
		return "string"
	case TypeButton:
		return "button"
	case TypeGroup:
		return "group"
	}
	return "unknown"
}

// IsWordSized reports whether values of t travel as a single word.
func (t ValueType) IsWordSized() bool {
	return t == TypeBool || t == TypeInt || t == TypeFixed
}

// IsValue reports whether options of type t carry a value.
func (t ValueType) IsValue() bool {
	return t.IsWordSized() || t == TypeString
}

func valueTypeFromSys(t sys.ValueType) ValueType {
	switch t {
	case sys.TypeBool:
		return TypeBool
	case sys.TypeInt:
		return TypeInt
	case sys.TypeFixed:
		return TypeFixed
	case sys.TypeString:
		return TypeString
	case sys.TypeButton:
		return TypeButton
	case sys.TypeGroup:
		return TypeGroup
	}
	return TypeUnknown
}

// Value is an option value: a bool, an int, a Fixed or a Str.
type Value struct {
	typ  ValueType
	word int32
	str  Str
}

func BoolValue(b bool) Value {
	v := Value{typ: TypeBool}
	if b {
		v.word = 1
	}
	return v
}

func IntValue(i int32) Value { return Value{typ: TypeInt, word: i} }

func FixedValue(f Fixed) Value { return Value{typ: TypeFixed, word: int32(f)} }

func StringValue(s Str) Value { return Value{typ: TypeString, str: s} }

// ValueFromWord builds a value of type t from a raw word. It fails for
// types that do not travel as words.
func ValueFromWord(w int32, t ValueType) (Value, bool) {
	switch t {
	case TypeBool:
		return BoolValue(w != 0), true
	case TypeInt:
		return IntValue(w), true
	case TypeFixed:
		return FixedValue(Fixed(w)), true
	}
	return Value{}, false
}

// Type returns TypeUnknown for the zero Value.
func (v Value) Type() ValueType { return v.typ }

// Word returns the raw word of a word-sized value.
func (v Value) Word() (int32, bool) {
	if !v.typ.IsWordSized() {
		return 0, false
	}
	return v.word, true
}

func (v Value) Bool() (bool, bool) { return v.word != 0, v.typ == TypeBool }

func (v Value) Int() (int32, bool) { return v.word, v.typ == TypeInt }

func (v Value) Fixed() (Fixed, bool) { return Fixed(v.word), v.typ == TypeFixed }

func (v Value) Str() (Str, bool) { return v.str, v.typ == TypeString }

func (v Value) String() string {
	switch v.typ {
	case TypeBool:
		return fmt.Sprint(v.word != 0)
	case TypeInt:
		return fmt.Sprint(v.word)
	case TypeFixed:
		return Fixed(v.word).String()
	case TypeString:
		return v.str.String()
	}
	return "<none>"
}
