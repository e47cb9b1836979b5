package infuse

import (
	"fmt"
	"reflect"
)

// Token identifies a dependency within one registry. Any comparable value
// works as a token: plain strings, reflect.Type values from TypeToken, or
// the opaque handles returned by UniqueToken. A token has at most one
// active provider per registry; re-registration replaces it.
type Token = any

// TypeToken returns a token derived from the type parameter. Two calls
// with the same type parameter yield equal tokens.
func TypeToken[T any]() Token {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// uniqueToken is equal only to itself (pointer identity). The label is
// carried purely for error messages.
type uniqueToken struct {
	label string
}

func (t *uniqueToken) String() string { return t.label }

// UniqueToken returns a token that cannot collide with any other token,
// even one created with the same label.
func UniqueToken(label string) Token {
	return &uniqueToken{label: label}
}

// tokenString formats a token for error messages and log fields.
func tokenString(t Token) string {
	switch v := t.(type) {
	case nil:
		return "<nil>"
	case string:
		return v
	case reflect.Type:
		return formatType(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatType formats a reflect.Type token with the package noise stripped
// for the common cases.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	case reflect.Interface, reflect.Struct:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
