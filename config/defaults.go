package config

// CommonSchema is the set of configuration keys every sipwire application
// shares, regardless of whether it runs as a proxy or a registrar.
var CommonSchema = Schema{
	{Key: "listen_address", Type: TypeSIPDefaultedURL, Required: true, Normalize: true, Group: "transport"},
	{Key: "listen_port", Type: TypeInteger, Default: 5060, Group: "transport"},
	{Key: "advertised_address", Type: TypeSIPURL, Normalize: true, Group: "transport"},
	{Key: "transport_protocols", Type: TypeSymbol, ListOf: true, Default: []any{Symbol("udp"), Symbol("tcp")}, Group: "transport"},
	{Key: "tls_cert_file", Type: TypeString, Group: "transport"},
	{Key: "tls_key_file", Type: TypeString, NoDisclosure: true, Group: "transport"},

	{Key: "log_level", Type: TypeSymbol, Default: Symbol("info"), SoftReload: true, Group: "logging"},
	{Key: "log_format", Type: TypeSymbol, Default: Symbol("console"), Group: "logging"},

	{Key: "transaction_timer_t1_ms", Type: TypeInteger, Default: 500, Group: "transaction"},
	{Key: "transaction_timer_t4_ms", Type: TypeInteger, Default: 5000, Group: "transaction"},
	{Key: "transaction_expiry_sweep_interval_ms", Type: TypeInteger, Default: 1000, SoftReload: true, Group: "transaction"},
	{Key: "transaction_table_size_hint", Type: TypeInteger, Default: 1024, Group: "transaction"},

	{Key: "max_forwards", Type: TypeInteger, Default: 70, SoftReload: true, Group: "routing"},
	{Key: "record_route", Type: TypeBoolean, Default: false, SoftReload: true, Group: "routing"},
	{Key: "trusted_peers", Type: TypeSIPURL, ListOf: true, Normalize: true, SoftReload: true, Group: "routing"},

	{Key: "auth_realm", Type: TypeString, Group: "auth"},
	{Key: "auth_shared_secret", Type: TypeOpaque, NoDisclosure: true, Group: "auth"},
	{Key: "auth_nonce_ttl_ms", Type: TypeInteger, Default: 30000, SoftReload: true, Group: "auth"},

	{Key: "number_rewrite_rules", Type: TypeRegexRewrite, ListOf: true, SoftReload: true, Group: "dialplan"},
	{Key: "blocked_caller_patterns", Type: TypeRegexMatch, ListOf: true, SoftReload: true, Group: "dialplan"},

	{Key: "admin_socket_path", Type: TypeString, Group: "admin"},
	{Key: "node_id", Type: TypeSymbol, Required: true, Group: "admin"},
	{Key: "cluster_peers", Type: TypeSIPDefaultedURL, ListOf: true, Normalize: true, SoftReload: true, Group: "admin"},
}

// ProxySchema is the overlay of keys meaningful to the proxy application,
// merged onto CommonSchema via Merge.
var ProxySchema = Schema{
	{Key: "proxy_record_route", Type: TypeBoolean, Default: true, SoftReload: true, Group: "proxy"},
	{Key: "proxy_max_loop_hops", Type: TypeInteger, Default: 7, Group: "proxy"},
	{Key: "proxy_forking_mode", Type: TypeSymbol, Default: Symbol("parallel"), SoftReload: true, Group: "proxy"},
	{Key: "proxy_downstream_uris", Type: TypeSIPURL, ListOf: true, Required: true, Normalize: true, SoftReload: true, Group: "proxy"},
}

// RegistrarSchema is the overlay of keys meaningful to the registrar
// application, merged onto CommonSchema via Merge.
var RegistrarSchema = Schema{
	{Key: "registrar_min_expires", Type: TypeInteger, Default: 60, Group: "registrar"},
	{Key: "registrar_max_expires", Type: TypeInteger, Default: 3600, Group: "registrar"},
	{Key: "registrar_default_expires", Type: TypeInteger, Default: 3600, SoftReload: true, Group: "registrar"},
	{Key: "registrar_store_backend", Type: TypeSymbol, Default: Symbol("memory"), Group: "registrar"},
	{Key: "registrar_aor_domains", Type: TypeString, ListOf: true, Required: true, SoftReload: true, Group: "registrar"},
}

// AppProxy and AppRegistrar are the two built-in application tags known to
// DefaultRegistry.
const (
	AppProxy     AppTag = "proxy"
	AppRegistrar AppTag = "registrar"
)

// DefaultRegistry is the schema registry built from CommonSchema and the
// proxy/registrar overlays. Applications that need a third profile build
// their own registry with NewSchemaRegistry instead of extending this one.
var DefaultRegistry = NewSchemaRegistry(CommonSchema, map[AppTag]Schema{
	AppProxy:     ProxySchema,
	AppRegistrar: RegistrarSchema,
})

// ApplyDefaults returns a copy of snapshot with one ConfigEntry appended for
// every schema key that has a Default and is not already present in
// snapshot. It does not overwrite a key the snapshot already defines, even
// if that key's value is empty.
func ApplyDefaults(snapshot ConfigSnapshot, schema Schema, source string) ConfigSnapshot {
	present := make(map[string]struct{}, len(snapshot))
	for _, e := range snapshot {
		present[e.Key] = struct{}{}
	}

	out := make(ConfigSnapshot, len(snapshot), len(snapshot)+len(schema))
	copy(out, snapshot)

	for _, se := range schema {
		if se.Default == nil {
			continue
		}
		if _, ok := present[se.Key]; ok {
			continue
		}
		out = append(out, ConfigEntry{Key: se.Key, Value: se.Default, Source: source})
	}

	return out
}
