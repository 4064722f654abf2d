package metadata

import (
	"reflect"
	"strings"
	"time"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// IsNullableType reports whether values of t can represent a database NULL
func IsNullableType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	case reflect.Struct:
		return t.PkgPath() == "database/sql" && strings.HasPrefix(t.Name(), "Null")
	}
	return false
}

// UnderlyingType strips pointer indirection and sql.Null wrappers
func UnderlyingType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct && t.PkgPath() == "database/sql" && strings.HasPrefix(t.Name(), "Null") {
		for i := 0; i < t.NumField(); i++ {
			if f := t.Field(i); f.Name != "Valid" {
				return f.Type
			}
		}
	}
	return t
}

// AreCompatible reports whether a foreign key property of type dependent can hold
// values of a principal key property of type principal
func AreCompatible(dependent, principal reflect.Type) bool {
	return UnderlyingType(dependent) == UnderlyingType(principal)
}

// IsScalarType reports whether t maps to a single column
func IsScalarType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t == bytesType {
		return true
	}
	u := UnderlyingType(t)
	if u == timeType || u == bytesType {
		return true
	}
	switch u.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Array:
		// fixed byte arrays such as uuid.UUID
		return u.Elem().Kind() == reflect.Uint8
	}
	return false
}

// IsIntegerType reports whether t is a signed or unsigned integer, ignoring pointers
func IsIntegerType(t reflect.Type) bool {
	u := UnderlyingType(t)
	if u == nil {
		return false
	}
	switch u.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
