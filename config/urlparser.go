package config

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"braces.dev/errtrace"
	"github.com/sipwire/core/internal/errorutil"
)

// errBadURL is wrapped into the returned error message; callers branch on
// ErrTypeMismatch, not on this sentinel, so it stays unexported.
const errBadURL errorutil.Error = "could not parse url"

func wrapBadURL(format string, args ...any) error {
	all := append([]any{format}, args...)
	return errtrace.Wrap(errorutil.NewWrapperError(errBadURL, all...))
}

// stdURLParser is the standard-library-backed URLParser. It understands the
// sip:/sips: scheme shape closely enough for validation purposes: a
// <scheme>:[user@]host[:port][;param=value...] string. It does not attempt
// full RFC 3261 URI grammar (escaped characters inside the user part,
// headers, or the full parameter grammar); values that need that precision
// should inject a richer URLParser implementation instead.
type stdURLParser struct{}

var defaultURLParser URLParser = stdURLParser{}

func (stdURLParser) Parse(s string) (ParsedURL, error) {
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok || scheme == "" {
		return ParsedURL{}, wrapBadURL("missing scheme in %q", s)
	}
	return parseURLBody(s, scheme, rest)
}

// ParseDefaulted keeps s as written when it already parses as a sip: or
// sips: URL; anything else (including a bare host:port) is parsed with
// "<scheme>:" prepended.
func (p stdURLParser) ParseDefaulted(scheme, s string) (ParsedURL, error) {
	if parsed, err := p.Parse(s); err == nil && (parsed.Scheme == "sip" || parsed.Scheme == "sips") {
		return parsed, nil
	}
	return parseURLBody(scheme+":"+s, scheme, s)
}

func parseURLBody(raw, scheme, rest string) (ParsedURL, error) {
	if rest == "" {
		return ParsedURL{}, wrapBadURL("empty url body in %q", raw)
	}

	hostPart := rest
	params := make(map[string]string)
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		hostPart = rest[:i]
		for _, seg := range strings.Split(rest[i+1:], ";") {
			if seg == "" {
				continue
			}
			k, v, _ := strings.Cut(seg, "=")
			k, err := url.QueryUnescape(k)
			if err != nil {
				return ParsedURL{}, wrapBadURL("bad parameter name in %q", raw)
			}
			v, err = url.QueryUnescape(v)
			if err != nil {
				return ParsedURL{}, wrapBadURL("bad parameter value in %q", raw)
			}
			params[k] = v
		}
	}

	user := ""
	host := hostPart
	if i := strings.LastIndexByte(hostPart, '@'); i >= 0 {
		user, host = hostPart[:i], hostPart[i+1:]
	}
	if host == "" {
		return ParsedURL{}, wrapBadURL("missing host in %q", raw)
	}

	var port uint16
	if h, p, err := net.SplitHostPort(host); err == nil {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return ParsedURL{}, wrapBadURL("bad port in %q", raw)
		}
		host = h
		port = uint16(n)
	}

	return ParsedURL{
		Raw:    raw,
		Scheme: scheme,
		User:   user,
		Host:   host,
		Port:   port,
		Params: params,
	}, nil
}
