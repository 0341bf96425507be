package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sipwire/core/internal/errorutil"
)

// ValidationError describes a single rejected configuration entry. Index is
// the 1-based position of the offending element within a list value, and 1
// for a singleton (list_of=false) value. ListSpan selects which of the two
// message forms applies: the multi-element "#<n> in list (...)" form when
// the schema entry is list_of, the plain single-value form otherwise —
// matching the shape of the value that was actually checked, not just its
// length.
type ValidationError struct {
	Key      string
	Value    any
	ListSpan bool
	Type     ValueType
	Index    int
	Reason   string
	kind     errorutil.Error
}

func (e *ValidationError) Error() string {
	if e.ListSpan {
		return fmt.Sprintf("parameter '%s' has invalid value (#%d in list (%s)) - expected %s : %s",
			e.Key, e.Index, renderValue(e.Value), e.Type, e.Reason)
	}
	return fmt.Sprintf("parameter '%s' has invalid value (%s) - expected %s : %s",
		e.Key, renderValue(e.Value), e.Type, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.kind }

// errInvalidType is the reason phrase every element-type mismatch carries;
// the validators do not distinguish "wrong Go type" from "wrong shape of
// the same type" in their message text, so neither does this.
const errInvalidType = "invalid type"

func newTypeError(key string, value any, typ ValueType, listOf bool, index int, reason string) *ValidationError {
	return &ValidationError{Key: key, Value: value, Type: typ, ListSpan: listOf, Index: index, Reason: reason, kind: ErrTypeMismatch}
}

func newShapeError(key string, value any, typ ValueType, reason string) *ValidationError {
	return &ValidationError{Key: key, Value: value, Type: typ, Index: 1, Reason: reason, kind: ErrShape}
}

// validateElement checks a single scalar raw value against typ, returning
// the value that should end up in the checked snapshot: the original raw
// value when normalize is false, or the type's canonical form when true.
// listOf and index only affect the shape of an eventual error message;
// index is 1-based regardless of listOf.
func validateElement(caps Capabilities, key string, typ ValueType, listOf bool, index int, raw any, normalize bool) (any, error) {
	switch typ {
	case TypeSymbol:
		return validateSymbol(key, typ, listOf, index, raw, normalize)
	case TypeInteger:
		return validateInteger(key, typ, listOf, index, raw)
	case TypeBoolean:
		return validateBoolean(key, typ, listOf, index, raw)
	case TypeString:
		return validateString(key, typ, listOf, index, raw, normalize)
	case TypeOpaque:
		return raw, nil
	case TypeRegexRewrite:
		return validateRegexRewrite(caps, key, typ, listOf, index, raw)
	case TypeRegexMatch:
		return validateRegexMatch(caps, key, typ, listOf, index, raw)
	case TypeSIPURL:
		return validateSIPURL(caps, key, typ, listOf, index, raw, "", false, normalize)
	case TypeSIPDefaultedURL:
		return validateSIPURL(caps, key, typ, listOf, index, raw, "sip", true, normalize)
	case TypeSIPSDefaultedURL:
		return validateSIPURL(caps, key, typ, listOf, index, raw, "sips", true, normalize)
	default:
		return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
	}
}

func validateSymbol(key string, typ ValueType, listOf bool, index int, raw any, normalize bool) (any, error) {
	v, ok := raw.(Symbol)
	if !ok {
		return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
	}
	if normalize {
		return Symbol(strings.ToLower(string(v))), nil
	}
	return v, nil
}

func validateInteger(key string, typ ValueType, listOf bool, index int, raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
		}
		return int(v), nil
	default:
		return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
	}
}

func validateBoolean(key string, typ ValueType, listOf bool, index int, raw any) (any, error) {
	v, ok := raw.(bool)
	if !ok {
		return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
	}
	return v, nil
}

// minStringLen is the shortest string a TypeString value may have; the
// length-1 boundary case in the validator's test suite is intentional, not
// an off-by-one.
const minStringLen = 2

func validateString(key string, typ ValueType, listOf bool, index int, raw any, normalize bool) (any, error) {
	v, ok := raw.(string)
	if !ok || len(v) < minStringLen {
		return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
	}
	if normalize {
		return strings.ToLower(v), nil
	}
	return v, nil
}

func validateRegexRewrite(caps Capabilities, key string, typ ValueType, listOf bool, index int, raw any) (any, error) {
	rw, ok := raw.(RegexRewrite)
	if !ok || len(rw.LHS) < minStringLen || len(rw.RHS) < minStringLen {
		return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
	}
	if _, err := caps.regexParser().Compile(rw.LHS); err != nil {
		return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
	}
	return rw, nil
}

func validateRegexMatch(caps Capabilities, key string, typ ValueType, listOf bool, index int, raw any) (any, error) {
	rm, ok := raw.(RegexMatch)
	if !ok {
		return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
	}
	if _, err := caps.regexParser().Compile(rm.LHS); err != nil {
		return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
	}
	return rm, nil
}

func validateSIPURL(caps Capabilities, key string, typ ValueType, listOf bool, index int, raw any, scheme string, defaulted bool, normalize bool) (any, error) {
	// A ParsedURL as input means a prior normalizing pass already accepted
	// this value; re-validate its original text so the operation stays
	// idempotent instead of rejecting its own output.
	s, ok := raw.(string)
	if !ok {
		if p, ok := raw.(ParsedURL); ok {
			s = p.Raw
		} else {
			return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
		}
	}
	var (
		parsed ParsedURL
		err    error
	)
	if defaulted {
		parsed, err = caps.urlParser().ParseDefaulted(scheme, s)
	} else {
		parsed, err = caps.urlParser().Parse(s)
	}
	if err != nil {
		return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
	}
	if parsed.Scheme != "sip" && parsed.Scheme != "sips" {
		return nil, newTypeError(key, raw, typ, listOf, index, errInvalidType)
	}
	if normalize {
		return parsed, nil
	}
	return s, nil
}

// reconcileShape enforces list_of against the raw shape of value and
// produces the list of elements the caller should run through
// validateElement. A list_of=false entry is always wrapped in a one-element
// singleton, even when the raw value happens to itself be a list — the
// whole value is then checked as a single (invalid) element, per the type
// validator's element contract, rather than rejected up front for shape.
func reconcileShape(key string, typ ValueType, listOf bool, value any) ([]any, error) {
	if !listOf {
		return []any{value}, nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil, newShapeError(key, value, typ, fmt.Sprintf("list of %s expected", typ))
	}
	return list, nil
}

// formatElementCount renders an element count as "1 element" or
// "<n> elements". Nothing in the package calls it; Schema.String does not
// print element counts.
func formatElementCount(n int) string {
	if n == 1 {
		return "1 element"
	}
	return strconv.Itoa(n) + " elements"
}
