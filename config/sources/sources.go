// Package sources provides reference EnvReader and configuration-source
// adapters for the config package's validator and reload classifier.
package sources

import (
	"os"
	"strings"
	"sync"

	"github.com/sipwire/core/config"
)

// MemEnv is a minimal, goroutine-safe config.EnvReader backed by an
// in-memory map. Applications that hold their live configuration in some
// other structure implement config.EnvReader directly instead; MemEnv
// exists for tests and for the reference CLI.
type MemEnv struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMemEnv builds a MemEnv seeded from snapshot, keeping the last entry
// for any key that appears more than once.
func NewMemEnv(snapshot config.ConfigSnapshot) *MemEnv {
	values := make(map[string]any, len(snapshot))
	for _, e := range snapshot {
		values[e.Key] = e.Value
	}
	return &MemEnv{values: values}
}

// Get implements config.EnvReader.
func (m *MemEnv) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Set installs key's live value, as observed after a prior reload applied
// it. Applications call this once a reload they approved actually takes
// effect, keeping MemEnv in sync for the next soft-reload comparison.
func (m *MemEnv) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]any)
	}
	m.values[key] = value
}

// Snapshot returns the live values as a ConfigSnapshot, with Source set to
// "live" for every entry.
func (m *MemEnv) Snapshot() config.ConfigSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(config.ConfigSnapshot, 0, len(m.values))
	for k, v := range m.values {
		out = append(out, config.ConfigEntry{Key: k, Value: v, Source: "live"})
	}
	return out
}

// EnvSource reads a Schema's keys from the process environment: a schema
// key named "foo_bar" is looked up as the environment variable
// SIPWIRE_FOO_BAR. It is the config package's "environment backend" —
// the one source of the three (env, defaults, and whatever file/remote
// backend an application layers on top) that is genuinely external,
// rather than in-memory or schema-derived.
type EnvSource struct {
	Schema config.Schema
	Label  string
}

// envVarName derives the environment variable name for a schema key.
func envVarName(key string) string {
	return "SIPWIRE_" + strings.ToUpper(key)
}

// Snapshot returns one entry per schema key: the environment variable's raw
// string value when set, or config.Undefined otherwise. Values come back as
// strings regardless of the schema's declared type. Check does not convert
// them: a string is accepted only by string- and URL-typed keys (a
// normalizing URL key turns "sip:alice@example.com" into a ParsedURL), and
// a key of any other type, such as "1" for an integer, is rejected as an
// invalid type.
func (e EnvSource) Snapshot() config.ConfigSnapshot {
	label := e.Label
	if label == "" {
		label = "env"
	}
	out := make(config.ConfigSnapshot, len(e.Schema))
	for i, se := range e.Schema {
		v, ok := os.LookupEnv(envVarName(se.Key))
		if !ok {
			out[i] = config.ConfigEntry{Key: se.Key, Value: config.Undefined, Source: label}
			continue
		}
		out[i] = config.ConfigEntry{Key: se.Key, Value: v, Source: label}
	}
	return out
}

// DefaultsSource expands a Schema's Default-bearing entries into a
// ConfigSnapshot tagged with a fixed source label. It is the config
// package's "defaults backend": keys without a Default produce a
// config.Undefined entry so callers can distinguish "no value, no default"
// from "absent entirely" when auditing a merge.
type DefaultsSource struct {
	Schema config.Schema
	Label  string
}

// Snapshot returns one entry per schema key: the schema Default when set,
// or config.Undefined otherwise.
func (d DefaultsSource) Snapshot() config.ConfigSnapshot {
	label := d.Label
	if label == "" {
		label = "defaults"
	}
	out := make(config.ConfigSnapshot, len(d.Schema))
	for i, se := range d.Schema {
		v := se.Default
		if v == nil {
			v = config.Undefined
		}
		out[i] = config.ConfigEntry{Key: se.Key, Value: v, Source: label}
	}
	return out
}
