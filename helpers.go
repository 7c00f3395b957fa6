package zorm

import (
	"database/sql/driver"
	"fmt"
	"reflect"
)

// isNullValue reports whether a key value references nothing: nil, a nil
// pointer, an invalid sql.Null* value or an empty string.
func isNullValue(v any) bool {
	if v == nil {
		return true
	}

	if valuer, ok := v.(driver.Valuer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return true
		}
		inner, err := valuer.Value()
		if err != nil {
			return true
		}
		return isNullValue(inner)
	}

	switch val := v.(type) {
	case string:
		return val == ""
	case []byte:
		return len(val) == 0
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true
		}
		return isNullValue(rv.Elem().Interface())
	}

	return false
}

// compareIDs compares two key values, handling type conversions (int vs
// int64, string vs []byte, etc.)
// A null key never matches, not even another null key.
func compareIDs(a, b any) bool {
	if isNullValue(a) || isNullValue(b) {
		return false
	}

	aVal := reflect.ValueOf(a)
	bVal := reflect.ValueOf(b)

	if isInteger(aVal.Kind()) && isInteger(bVal.Kind()) {
		return sameInteger(aVal, bVal)
	}

	return keyString(a) == keyString(b)
}

// sameInteger compares integers of any width and signedness without
// wrapping: a negative value never equals an unsigned one.
func sameInteger(a, b reflect.Value) bool {
	aSigned, bSigned := isSigned(a.Kind()), isSigned(b.Kind())
	switch {
	case aSigned && bSigned:
		return a.Int() == b.Int()
	case !aSigned && !bSigned:
		return a.Uint() == b.Uint()
	case aSigned:
		return a.Int() >= 0 && uint64(a.Int()) == b.Uint()
	default:
		return b.Int() >= 0 && uint64(b.Int()) == a.Uint()
	}
}

func keyString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

func isInteger(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Uint64
}

func isSigned(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}
