package config

import (
	"regexp"

	"braces.dev/errtrace"
	"github.com/sipwire/core/internal/errorutil"
)

// errBadRegex is wrapped into the returned error message for a pattern the
// standard library's RE2 engine rejects.
const errBadRegex errorutil.Error = "could not compile regular expression"

// stdRegexParser wraps regexp.Compile. RE2 is not a drop-in replacement for
// the backtracking regex engines common elsewhere (no backreferences, no
// lookaround); patterns relying on those constructs need a richer
// RegexParser supplied by the caller.
type stdRegexParser struct{}

var defaultRegexParser RegexParser = stdRegexParser{}

type stdCompiledRegex struct{ re *regexp.Regexp }

func (c stdCompiledRegex) MatchString(s string) bool { return c.re.MatchString(s) }
func (c stdCompiledRegex) String() string             { return c.re.String() }

func (stdRegexParser) Compile(pattern string) (CompiledRegex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errtrace.Wrap(errorutil.NewWrapperError(errBadRegex, err))
	}
	return stdCompiledRegex{re: re}, nil
}
