package schema

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies the value kind stored in a column.
type Type int

const (
	// TypeText stores UTF-8 strings.
	TypeText Type = iota
	// TypeInt stores signed 64-bit integers.
	TypeInt
	// TypeFloat stores 64-bit floating point numbers.
	TypeFloat
	// TypeBool stores booleans.
	TypeBool
	// TypeUUID stores RFC 4122 UUIDs.
	TypeUUID
	// TypeTimestamp stores instants with microsecond precision in UTC.
	TypeTimestamp
)

func (t Type) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeUUID:
		return "uuid"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Coerce converts v into the canonical Go representation for t:
// string, int64, float64, bool, uuid.UUID or time.Time. A nil value stays nil.
func (t Type) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		return t.Coerce(rv.Elem().Interface())
	}

	switch t {
	case TypeText:
		switch val := v.(type) {
		case string:
			return val, nil
		case []byte:
			return string(val), nil
		}
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case TypeInt:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			u := rv.Uint()
			if u > math.MaxInt64 {
				return nil, fmt.Errorf("value %d overflows int", u)
			}
			return int64(u), nil
		}
	case TypeFloat:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), nil
		}
	case TypeBool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	case TypeUUID:
		switch val := v.(type) {
		case uuid.UUID:
			return val, nil
		case [16]byte:
			return uuid.UUID(val), nil
		case string:
			parsed, err := uuid.Parse(strings.TrimSpace(val))
			if err != nil {
				return nil, fmt.Errorf("invalid UUID value %q", val)
			}
			return parsed, nil
		case []byte:
			if len(val) == 16 {
				return uuid.FromBytes(val)
			}
			parsed, err := uuid.ParseBytes(val)
			if err != nil {
				return nil, fmt.Errorf("invalid UUID bytes")
			}
			return parsed, nil
		}
	case TypeTimestamp:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC().Truncate(time.Microsecond), nil
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t)
}

// Valid reports whether v is nil or already in the canonical representation for t.
func (t Type) Valid(v any) bool {
	if v == nil {
		return true
	}
	switch t {
	case TypeText:
		_, ok := v.(string)
		return ok
	case TypeInt:
		_, ok := v.(int64)
		return ok
	case TypeFloat:
		_, ok := v.(float64)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeUUID:
		_, ok := v.(uuid.UUID)
		return ok
	case TypeTimestamp:
		_, ok := v.(time.Time)
		return ok
	}
	return false
}

// Equal compares two canonical values of type t.
func (t Type) Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if t == TypeTimestamp {
		at, aok := a.(time.Time)
		bt, bok := b.(time.Time)
		return aok && bok && at.Equal(bt)
	}
	return a == b
}

// ParseLiteral parses a textual literal, as written in a struct tag, into a canonical value.
func (t Type) ParseLiteral(raw string) (any, error) {
	switch t {
	case TypeText:
		return raw, nil
	case TypeInt:
		return strconv.ParseInt(raw, 10, 64)
	case TypeFloat:
		return strconv.ParseFloat(raw, 64)
	case TypeBool:
		return strconv.ParseBool(raw)
	case TypeUUID:
		return t.Coerce(raw)
	case TypeTimestamp:
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		return t.Coerce(ts)
	}
	return nil, fmt.Errorf("unsupported column type %s", t)
}

var (
	uuidType = reflect.TypeOf(uuid.UUID{})
	timeType = reflect.TypeOf(time.Time{})
)

// typeForGo maps a struct field type onto a column type.
func typeForGo(rt reflect.Type) (Type, bool) {
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	switch rt {
	case uuidType:
		return TypeUUID, true
	case timeType:
		return TypeTimestamp, true
	}
	switch rt.Kind() {
	case reflect.String:
		return TypeText, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return TypeInt, true
	case reflect.Float32, reflect.Float64:
		return TypeFloat, true
	case reflect.Bool:
		return TypeBool, true
	}
	return 0, false
}
