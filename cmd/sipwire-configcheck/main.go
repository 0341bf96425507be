// Command sipwire-configcheck reads a TOML configuration file, validates it
// against the built-in proxy/registrar schema, and prints either the
// normalized snapshot or the first validation error. It exists so the
// configuration engine has one real caller beyond its tests.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/sipwire/core/config"
	"github.com/sipwire/core/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("sipwire-configcheck", flag.ContinueOnError)
	file := fs.String("file", "", "path to a TOML configuration file")
	app := fs.String("app", "proxy", "application profile (proxy, registrar)")
	mode := fs.String("mode", "hard", "reload mode to classify against (hard, soft)")
	dev := fs.Bool("dev", false, "use the development logger")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *file == "" {
		fmt.Fprintln(os.Stderr, "sipwire-configcheck: -file is required")
		return 2
	}

	logger := log.Default()
	if *dev {
		logger = log.Dev()
	}
	log.SetDefault(logger)

	reloadMode, err := parseMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sipwire-configcheck:", err)
		return 2
	}

	snapshot, err := loadSnapshot(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sipwire-configcheck: could not read", *file, ":", err)
		return 1
	}

	out, err := config.CheckApp(snapshot, config.DefaultRegistry, config.AppTag(*app), reloadMode, config.Capabilities{}, nil, nil, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, config.ExplainError(err))
		return 1
	}

	for _, e := range out {
		fmt.Printf("%s = %v (source: %s)\n", e.Key, e.Value, e.Source)
	}
	return 0
}

func parseMode(s string) (config.ReloadMode, error) {
	switch s {
	case "hard":
		return config.ModeHard, nil
	case "soft":
		return config.ModeSoft, nil
	default:
		return 0, fmt.Errorf("unknown reload mode %q (want hard or soft)", s)
	}
}

// loadSnapshot decodes a flat TOML table into a ConfigSnapshot, sorting keys
// so the resulting order (and thus any validation error about the first bad
// key) is deterministic across runs of the same file.
func loadSnapshot(path string) (config.ConfigSnapshot, error) {
	raw := make(map[string]any)
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	snapshot := make(config.ConfigSnapshot, len(keys))
	for i, k := range keys {
		snapshot[i] = config.ConfigEntry{Key: k, Value: tomlValue(raw[k]), Source: "file"}
	}
	return snapshot, nil
}

// tomlValue adapts a value decoded by BurntSushi/toml into the shape the
// config package's validators expect: symbolic keys are represented as
// config.Symbol, not a bare Go string, so a TOML string value intended for a
// symbol-typed schema entry (e.g. a transport protocol name) still needs the
// caller to know which keys are symbols. This reference CLI keeps it simple
// and passes every TOML string through as a Go string, so a symbol-typed key
// given a TOML string is rejected as an invalid type; wiring a Symbol-typed
// key from a TOML file requires either a typed decode target or a documented
// convention. int64 values become int, and []interface{} values are rebuilt
// as []any with each element adapted the same way, so ListOf reconciliation
// sees the shape it expects.
func tomlValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = tomlValue(e)
		}
		return out
	case int64:
		return int(x)
	default:
		return x
	}
}
