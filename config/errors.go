package config

import (
	"fmt"

	"github.com/sipwire/core/internal/errorutil"
)

// Error kinds surfaced by the configuration engine. Callers branch on these
// with errors.Is; the human-readable message returned by Check/CheckLoadable
// is always a single line.
const (
	// ErrUnknownKey is returned when a key is not present in the schema and
	// does not use the local_ escape prefix.
	ErrUnknownKey errorutil.Error = "unknown configuration parameter"
	// ErrTypeMismatch is returned when a value does not satisfy its
	// SchemaEntry's type.
	ErrTypeMismatch errorutil.Error = "invalid parameter value"
	// ErrShape is returned when a singleton value is given where a list was
	// expected, or vice versa.
	ErrShape errorutil.Error = "invalid parameter shape"
	// ErrRequired is returned when a required key is entirely absent.
	ErrRequired errorutil.Error = "required parameter not set"
	// ErrEmpty is returned when a required key is present but empty.
	ErrEmpty errorutil.Error = "required parameter empty"
	// ErrReloadRefused is returned when a soft reload attempts to change a
	// hard-only parameter to a new value.
	ErrReloadRefused errorutil.Error = "configuration parameter not soft-reloadable"
	// ErrInternalInvariant is raised (not returned to well-behaved callers)
	// when the validator reaches a state that the earlier unknown-key check
	// should have made unreachable.
	ErrInternalInvariant errorutil.Error = "internal invariant violated"
	// ErrLocalValidator is returned when an external local_ validator panics
	// or otherwise misbehaves; the panic is converted to this error.
	ErrLocalValidator errorutil.Error = "could not parse configuration"
)

// wrapped is a message paired with one of the sentinel Error kinds above.
// Its Error() text is exactly the human-readable message the configuration
// engine's callers see; the sentinel is reachable only through errors.Is,
// not printed inline the way errorutil.NewWrapperError would.
type wrapped struct {
	kind errorutil.Error
	msg  string
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.kind }

func wrapf(kind errorutil.Error, format string, args ...any) error {
	return &wrapped{kind: kind, msg: fmt.Sprintf(format, args...)}
}
