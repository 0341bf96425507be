package config

import (
	"log/slog"
	"reflect"
	"strings"

	"braces.dev/errtrace"
	"github.com/sipwire/core/log"
)

// ReloadMode distinguishes the two ways a configuration snapshot can be
// applied to a running process.
type ReloadMode int

const (
	// ModeHard permits any change: the process is restarting (or starting
	// for the first time) and every key may take its new value.
	ModeHard ReloadMode = iota
	// ModeSoft permits only changes to keys marked SoftReload in the
	// schema; every other key's new value must equal its current, live
	// value or the reload is refused.
	ModeSoft
)

// CheckLoadable classifies whether snapshot, already validated by Check, may
// be applied under mode. It returns the first offending key's error; nil
// means the whole snapshot may be applied.
//
// Under ModeHard every key passes. Under ModeSoft, a key with
// SchemaEntry.SoftReload set always passes; any other key is compared
// against its current live value via env, and passes only when the two are
// equal or the key is not currently set at all (first-time definition of a
// previously-undefined key is not a "change"). A local_-prefixed key is
// instead referred to local for a reloadability verdict.
//
// CheckLoadable assumes snapshot's keys all exist in schema or use the
// local_ prefix; Check guarantees that by construction, so a lookup miss
// here means a snapshot that bypassed Check reached CheckLoadable directly.
// That condition is reported as ErrInternalInvariant, recovered at this
// function's boundary, rather than left to panic into caller code.
func CheckLoadable(snapshot ConfigSnapshot, schema Schema, mode ReloadMode, env EnvReader, local LocalReloadChecker, logger *slog.Logger) (err error) {
	logger = log.OrDefault(logger)

	if mode == ModeHard {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = errtrace.Wrap(wrapf(ErrInternalInvariant, "%v", r))
		}
	}()

	for _, entry := range snapshot {
		if strings.HasPrefix(entry.Key, localKeyPrefix) {
			if err := checkLocalReloadable(entry, local); err != nil {
				return err
			}
			continue
		}

		se, ok := schema.Lookup(entry.Key)
		if !ok {
			panic("configuration key " + entry.Key + " has no schema entry")
		}
		if se.SoftReload {
			continue
		}
		if err := checkHardKeyUnchanged(entry, se, env, logger); err != nil {
			return err
		}
	}

	return nil
}

func checkLocalReloadable(entry ConfigEntry, local LocalReloadChecker) error {
	if local == nil || !local.IsSoftReloadable(entry.Key, entry.Value) {
		return errtrace.Wrap(wrapf(ErrReloadRefused,
			"Configuration parameter '%s' (source: %s) is not soft-reloadable: requested value (%s)",
			entry.Key, entry.Source, renderValue(entry.Value)))
	}
	return nil
}

func checkHardKeyUnchanged(entry ConfigEntry, se SchemaEntry, env EnvReader, logger *slog.Logger) error {
	if env == nil {
		return errtrace.Wrap(wrapf(ErrReloadRefused,
			"Configuration parameter '%s' (source: %s) is not soft-reloadable: requested value (%s)",
			entry.Key, entry.Source, renderValue(entry.Value)))
	}

	current, ok := env.Get(entry.Key)
	if !ok {
		// The key has no live value yet: defining it for the first time
		// during a soft reload is not a change to an already-running value.
		logger.Debug("soft reload defines previously-unset hard key", "key", se.Key)
		return nil
	}

	if valuesEqual(entry.Value, current) {
		return nil
	}

	return errtrace.Wrap(wrapf(ErrReloadRefused,
		"Configuration parameter '%s' (source: %s) is not soft-reloadable: current value (%s), requested value (%s)",
		entry.Key, entry.Source, renderValue(current), renderValue(entry.Value)))
}

// valuesEqual compares a normalized ConfigEntry value against the
// application's currently-held value. Both sides have already passed
// through Check's normalization for a value taken from a snapshot, but the
// live value read back via EnvReader may be a different concrete
// representation of the same list (e.g. []string vs []any), so the
// comparison normalizes shape before falling back to reflect.DeepEqual.
func valuesEqual(want, got any) bool {
	return reflect.DeepEqual(normalizeForCompare(want), normalizeForCompare(got))
}

func normalizeForCompare(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Interface {
		if s, ok := v.([]any); ok {
			return s
		}
		return v
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
