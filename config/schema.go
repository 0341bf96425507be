package config

import (
	"sort"
	"strings"
)

// SchemaEntry is a declarative description of one configuration key.
type SchemaEntry struct {
	// Key is the symbolic identifier, unique within a Schema.
	Key string
	// Type is one of the ten value types this key accepts.
	Type ValueType
	// ListOf marks the value as an ordered sequence of Type rather than a
	// single element.
	ListOf bool
	// Default is the value substituted when the key is entirely absent from
	// a snapshot. It is not itself re-validated.
	Default any
	// Required marks the effective value as mandatory and non-empty.
	Required bool
	// Normalize allows the validator to substitute a canonical form (case
	// folding for strings, a parsed URL for the URL types).
	Normalize bool
	// SoftReload marks the key as changeable without a full restart. When
	// false, changing the key demands a hard reload.
	SoftReload bool
	// NoDisclosure marks the key's normalized value as unfit for log lines;
	// only its key name is logged, never the value.
	NoDisclosure bool
	// Group is a free-form label used to cluster related entries in
	// diagnostic output (Schema.String). It carries no validation meaning.
	Group string
}

// Schema is a sequence of SchemaEntry, sorted by Key to keep diagnostic
// output deterministic. Lookups are linear but the expected schema size
// (tens of entries) makes that a non-issue.
type Schema []SchemaEntry

// Lookup returns the entry for key, if any.
func (s Schema) Lookup(key string) (SchemaEntry, bool) {
	for _, e := range s {
		if e.Key == key {
			return e, true
		}
	}
	return SchemaEntry{}, false
}

// sorted returns a copy of s ordered by Key.
func (s Schema) sorted() Schema {
	out := make(Schema, len(s))
	copy(out, s)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Merge combines a common schema with an application-specific overlay.
// Iterating the overlay in its declared order, each entry either replaces
// an existing common entry with the same key or is appended; the result is
// then sorted by key. Merge is idempotent: Merge(Merge(a, b), b) equals
// Merge(a, b).
func Merge(common, overlay Schema) Schema {
	byKey := make(map[string]int, len(common))
	merged := make(Schema, len(common))
	copy(merged, common)
	for i, e := range merged {
		byKey[e.Key] = i
	}

	for _, e := range overlay {
		if i, ok := byKey[e.Key]; ok {
			merged[i] = e
			continue
		}
		byKey[e.Key] = len(merged)
		merged = append(merged, e)
	}

	return merged.sorted()
}

// AppTag identifies an application profile within a SchemaRegistry.
type AppTag string

// SchemaRegistry holds the merged schema for each known application
// profile, built once from a common schema and per-app overlays.
type SchemaRegistry struct {
	common Schema
	apps   map[AppTag]Schema
	cache  map[AppTag]Schema
}

// NewSchemaRegistry builds a registry from a common schema and a set of
// application overlays. The merge for each app is computed eagerly so
// SchemaFor never mutates shared state after construction.
func NewSchemaRegistry(common Schema, apps map[AppTag]Schema) *SchemaRegistry {
	reg := &SchemaRegistry{
		common: common.sorted(),
		apps:   apps,
		cache:  make(map[AppTag]Schema, len(apps)),
	}
	for app, overlay := range apps {
		reg.cache[app] = Merge(reg.common, overlay)
	}
	return reg
}

// SchemaFor returns the merged schema for app. An unknown app tag yields the
// common schema unchanged.
func (r *SchemaRegistry) SchemaFor(app AppTag) Schema {
	if r == nil {
		return nil
	}
	if s, ok := r.cache[app]; ok {
		return s
	}
	return r.common
}

// String renders a compact, grouped listing of the schema for diagnostics.
func (s Schema) String() string {
	var sb strings.Builder
	groups := make(map[string][]SchemaEntry)
	var order []string
	for _, e := range s.sorted() {
		g := e.Group
		if g == "" {
			g = "ungrouped"
		}
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], e)
	}
	sort.Strings(order)
	for _, g := range order {
		sb.WriteString(g)
		sb.WriteString(":\n")
		for _, e := range groups[g] {
			sb.WriteString("  ")
			sb.WriteString(e.Key)
			sb.WriteString(" (")
			sb.WriteString(string(e.Type))
			if e.ListOf {
				sb.WriteString(", list")
			}
			if e.Required {
				sb.WriteString(", required")
			}
			sb.WriteString(")\n")
		}
	}
	return sb.String()
}
