package config

import (
	"fmt"
	"log/slog"
	"strings"

	"braces.dev/errtrace"
	"github.com/sipwire/core/log"
)

// ConfigEntry is one raw (key, value) pair taken from a configuration
// source, before or after validation.
type ConfigEntry struct {
	Key    string
	Value  any
	Source string
}

// ConfigSnapshot is an ordered sequence of ConfigEntry. Check does not merge
// duplicate keys across sources: it validates every entry and keeps each one
// in its original position; only the required check looks at the last entry
// for a key.
type ConfigSnapshot []ConfigEntry

// localKeyPrefix marks a configuration key as owned by an application-level
// extension rather than the shared schema.
const localKeyPrefix = "local_"

// Check validates every entry in snapshot against schema, in the context of
// application app, and returns a new snapshot holding normalized values.
// The input snapshot is never mutated.
//
// Validation proceeds in these steps per the configuration engine's design:
// for each entry, unknown-key rejection, shape reconciliation, and
// per-element type validation with normalization and disclosure-aware
// logging (skipped for empty values, which fall through to the required
// check); then, over the whole result, required/empty enforcement. The
// first error encountered is returned; Check does not
// accumulate a multi-error report, since a misconfigured process should
// refuse to start on the first problem rather than print a long list and
// start anyway.
func Check(snapshot ConfigSnapshot, schema Schema, app AppTag, caps Capabilities, logger *slog.Logger) (ConfigSnapshot, error) {
	logger = log.OrDefault(logger)
	out := make(ConfigSnapshot, 0, len(snapshot))

	for _, entry := range snapshot {
		checked, err := checkEntry(entry, schema, caps, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, checked)
	}

	if err := checkRequired(out, schema); err != nil {
		return nil, err
	}

	return out, nil
}

func checkEntry(entry ConfigEntry, schema Schema, caps Capabilities, logger *slog.Logger) (ConfigEntry, error) {
	if strings.HasPrefix(entry.Key, localKeyPrefix) {
		return checkLocalEntry(entry, caps, logger)
	}

	se, ok := schema.Lookup(entry.Key)
	if !ok {
		return ConfigEntry{}, errtrace.Wrap(wrapf(ErrUnknownKey,
			"Unknown configuration parameter %s (source: %s)", entry.Key, entry.Source))
	}

	// Undefined and otherwise-empty values bypass type checking entirely;
	// whether that is acceptable is decided by the required check below.
	if isUndefined(entry.Value) || isEmptyValue(entry.Value) {
		return ConfigEntry{Key: entry.Key, Value: entry.Value, Source: entry.Source}, nil
	}

	elements, err := reconcileShape(se.Key, se.Type, se.ListOf, entry.Value)
	if err != nil {
		return ConfigEntry{}, errtrace.Wrap(err)
	}

	normalized := make([]any, len(elements))
	for i, raw := range elements {
		v, err := validateElement(caps, se.Key, se.Type, se.ListOf, i+1, raw, se.Normalize)
		if err != nil {
			return ConfigEntry{}, errtrace.Wrap(err)
		}
		normalized[i] = v
	}

	var finalValue any
	if se.ListOf {
		finalValue = normalized
	} else {
		finalValue = normalized[0]
	}

	logNormalized(logger, se, entry, finalValue)

	return ConfigEntry{Key: entry.Key, Value: finalValue, Source: entry.Source}, nil
}

func checkLocalEntry(entry ConfigEntry, caps Capabilities, logger *slog.Logger) (ConfigEntry, error) {
	if caps.LocalValidator == nil {
		return ConfigEntry{}, errtrace.Wrap(wrapf(ErrUnknownKey,
			"Unknown configuration parameter %s (source: %s)", entry.Key, entry.Source))
	}
	v, err := callLocalValidator(caps.LocalValidator, entry.Key, entry.Value, entry.Source)
	if err != nil {
		return ConfigEntry{}, errtrace.Wrap(err)
	}
	logger.Debug("normalized local configuration entry", "key", entry.Key, "source", entry.Source)
	return ConfigEntry{Key: entry.Key, Value: v, Source: entry.Source}, nil
}

// callLocalValidator isolates the call into an application-supplied
// LocalValidator, converting a panic into ErrLocalValidator rather than
// letting a misbehaving extension take the whole process down.
func callLocalValidator(lv LocalValidator, key string, value any, source string) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errtrace.Wrap(wrapf(ErrLocalValidator, "Could not parse configuration (parameter '%s', caught %v)", key, r))
		}
	}()
	v, err = lv.Validate(key, value, source)
	if err != nil {
		err = errtrace.Wrap(wrapf(ErrLocalValidator, "Could not parse configuration (parameter '%s', caught %v)", key, err))
	}
	return v, err
}

func checkRequired(snapshot ConfigSnapshot, schema Schema) error {
	present := make(map[string]ConfigEntry, len(snapshot))
	for _, e := range snapshot {
		present[e.Key] = e
	}

	for _, se := range schema {
		if !se.Required {
			continue
		}
		entry, ok := present[se.Key]
		if !ok {
			return errtrace.Wrap(wrapf(ErrRequired, "Required parameter '%s' not set", se.Key))
		}
		if isEmptyValue(entry.Value) || isUndefined(entry.Value) {
			return errtrace.Wrap(wrapf(ErrEmpty, "Required parameter '%s' may not have empty value", se.Key))
		}
	}
	return nil
}

// logNormalized logs a validated key's final value at debug level, honoring
// NoDisclosure by omitting the value itself and logging only the key, the
// source and disclosed=false.
func logNormalized(logger *slog.Logger, se SchemaEntry, entry ConfigEntry, finalValue any) {
	if se.NoDisclosure {
		logger.Debug("validated configuration entry", "key", se.Key, "source", entry.Source, "disclosed", false)
		return
	}
	logger.Debug("validated configuration entry",
		"key", se.Key,
		"source", entry.Source,
		"value", log.FmtValue(finalValue),
	)
}

// ExplainError renders err the way a CLI diagnostic tool should: the
// error's own single-line message. The sentinel kind's text is not added;
// it stays reachable only through errors.Is.
func ExplainError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}
