package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType identifies one of the ten atomic value shapes a SchemaEntry can
// describe. See the type table in the configuration specification.
type ValueType string

const (
	TypeSymbol           ValueType = "symbol"
	TypeInteger          ValueType = "integer"
	TypeBoolean          ValueType = "boolean"
	TypeString           ValueType = "string"
	TypeOpaque           ValueType = "opaque"
	TypeRegexRewrite     ValueType = "regex_rewrite"
	TypeRegexMatch       ValueType = "regex_match"
	TypeSIPURL           ValueType = "sip_url"
	TypeSIPDefaultedURL  ValueType = "sip_defaulted_url"
	TypeSIPSDefaultedURL ValueType = "sips_defaulted_url"
)

func (t ValueType) String() string { return string(t) }

// Symbol is a symbolic atom, distinct from a general string so that the
// symbol validator rejects plain strings the way the source language's
// atom/string distinction does.
type Symbol string

// RegexRewrite is the (lhs, rhs) pair accepted by the regex_rewrite type.
type RegexRewrite struct {
	LHS string
	RHS string
}

func (r RegexRewrite) String() string { return fmt.Sprintf("(%q, %q)", r.LHS, r.RHS) }

// RegexMatch is the (lhs, rhs) pair accepted by the regex_match type. RHS is
// unconstrained and carried through unchanged.
type RegexMatch struct {
	LHS string
	RHS any
}

func (r RegexMatch) String() string { return fmt.Sprintf("(%q, %v)", r.LHS, r.RHS) }

// ParsedURL is the normalized form of a sip_url/sip_defaulted_url/
// sips_defaulted_url value. It is an opaque handle that keeps the original
// text alongside the parsed fields, so a value that was accepted with
// Normalize=false can round-trip losslessly as a plain string, and a value
// accepted with Normalize=true can still be rendered back to text.
type ParsedURL struct {
	Raw    string
	Scheme string
	User   string
	Host   string
	Port   uint16
	Params map[string]string
}

func (u ParsedURL) String() string { return u.Raw }

// undefinedType is the sentinel for a value the defaults source produced to
// mean "this key has no configured value" rather than an actual value.
type undefinedType struct{}

// Undefined marks a ConfigEntry produced by a defaults backend for a key
// that has no default. Such entries bypass type checking entirely.
var Undefined = undefinedType{}

func isUndefined(v any) bool {
	_, ok := v.(undefinedType)
	return ok
}

// isEmptyValue reports whether v should be treated as "not actually
// present" for the purposes of the required-parameter check: an empty
// string, an empty list, a nil value, or Undefined.
func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case undefinedType:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	default:
		return false
	}
}

// renderValue formats a value for inclusion in a validation error message,
// quoting strings and rendering lists as a bracketed, comma-joined sequence.
func renderValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = renderValue(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
