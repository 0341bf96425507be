package txregistry

import "github.com/sipwire/core/internal/errorutil"

// Error kinds the Index's accessor methods can return. Mutators never
// surface these to callers — per the error handling design, a duplicate
// add or an update against an unknown ref is logged and the index is left
// unchanged, because the Index's callers are protocol handlers that must
// remain live. Only the read-side "demand a unique element" accessor
// (GetByWorkerUnique) returns an error a caller is expected to branch on.
const (
	// ErrDuplicateTransaction marks an add_* call that found an existing
	// record sharing (kind, id); informational only, logged at the call
	// site rather than returned.
	ErrDuplicateTransaction errorutil.Error = "duplicate transaction"
	// ErrTransactionNotFound is returned by GetByWorkerUnique when no
	// record matches the requested worker.
	ErrTransactionNotFound errorutil.Error = "transaction not found"
	// ErrAmbiguousWorkerMatch is returned by GetByWorkerUnique when more
	// than one record matches the requested worker.
	ErrAmbiguousWorkerMatch errorutil.Error = "ambiguous worker match"
)
