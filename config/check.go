package config

import "log/slog"

// CheckApp is the configuration engine's top-level entry point: it resolves
// app's merged schema from registry, validates and normalizes snapshot
// against it (Check), and then classifies the result's reload compatibility
// under mode (CheckLoadable). Check and CheckLoadable stay independently
// callable for tests and for callers that already hold a resolved Schema;
// CheckApp is the one a CLI or supervisor calls with just a snapshot, an app
// tag and a reload mode.
func CheckApp(snapshot ConfigSnapshot, registry *SchemaRegistry, app AppTag, mode ReloadMode, caps Capabilities, env EnvReader, local LocalReloadChecker, logger *slog.Logger) (ConfigSnapshot, error) {
	schema := registry.SchemaFor(app)

	out, err := Check(snapshot, schema, app, caps, logger)
	if err != nil {
		return nil, err
	}

	if err := CheckLoadable(out, schema, mode, env, local, logger); err != nil {
		return nil, err
	}

	return out, nil
}
