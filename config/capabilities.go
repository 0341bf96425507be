package config

// URLParser parses the textual form of a SIP/SIPS URL. The default
// implementation is stdURLParser; callers may inject their own to reuse a
// richer, RFC 3261 ABNF-grade parser.
type URLParser interface {
	// Parse parses s, which must already carry an explicit scheme.
	Parse(s string) (ParsedURL, error)
	// ParseDefaulted parses s, prepending "<scheme>:" first when s has no
	// scheme of its own.
	ParseDefaulted(scheme, s string) (ParsedURL, error)
}

// CompiledRegex is the result of compiling a pattern through a RegexParser.
type CompiledRegex interface {
	MatchString(s string) bool
	String() string
}

// RegexParser compiles regular expressions on demand. The default
// implementation, stdRegexParser, wraps the standard library's regexp
// package.
type RegexParser interface {
	Compile(pattern string) (CompiledRegex, error)
}

// LocalValidator is the escape hatch for local_-prefixed keys, which have no
// SchemaEntry and are validated by an application-owned extension instead.
type LocalValidator interface {
	Validate(key string, value any, source string) (normalized any, err error)
}

// LocalReloadChecker decides whether a local_-prefixed key's new value is
// permitted under a soft reload.
type LocalReloadChecker interface {
	IsSoftReloadable(key string, value any) bool
}

// EnvReader reads the current live value of a configuration key, as held by
// the running application. It backs the soft-reload comparison in
// CheckLoadable. A nil result with ok=false means the key is currently
// unset, or the capability itself is unavailable.
type EnvReader interface {
	Get(key string) (value any, ok bool)
}

// Capabilities bundles the external collaborators Check needs: URLParser and
// RegexParser default to the standard-library-backed implementations when
// left nil, and a nil LocalValidator makes Check reject every local_-prefixed
// key as an unknown parameter.
// The env and local-reload capabilities CheckLoadable needs are passed to it
// directly rather than bundled here, since CheckLoadable is called with an
// already-resolved Schema and has no other use for Capabilities.
type Capabilities struct {
	URLParser      URLParser
	RegexParser    RegexParser
	LocalValidator LocalValidator
}

func (c Capabilities) urlParser() URLParser {
	if c.URLParser == nil {
		return defaultURLParser
	}
	return c.URLParser
}

func (c Capabilities) regexParser() RegexParser {
	if c.RegexParser == nil {
		return defaultRegexParser
	}
	return c.RegexParser
}
