// Package txregistry implements the in-memory transaction matching table a
// SIP transaction dispatcher consults to correlate incoming requests and
// responses with the client/server transaction state driving them.
package txregistry

import "fmt"

// Kind distinguishes a client transaction (we sent the request) from a
// server transaction (we received it).
type Kind int

const (
	Client Kind = iota
	Server
)

func (k Kind) String() string {
	switch k {
	case Client:
		return "client"
	case Server:
		return "server"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Ref is an opaque, per-process-unique identity assigned to a Record at
// creation time. It is the only handle that survives an in-place Update.
type Ref uint64

func (r Ref) String() string { return fmt.Sprintf("ref:%d", uint64(r)) }

// ClientKey is the primary match key for a client transaction: the
// branch/method pair carried in the request's Via header and CSeq.
type ClientKey struct {
	Branch string
	Method string
}

func (k ClientKey) String() string { return k.Method + " " + k.Branch }

// Equal reports whether k and other identify the same client transaction.
func (k ClientKey) Equal(other ClientKey) bool {
	return k.Branch == other.Branch && k.Method == other.Method
}

// ServerKey is the primary match key for a server transaction: an opaque
// id supplied by the SIP parser's RFC 3261 server-transaction algorithm.
type ServerKey struct {
	ID string
}

func (k ServerKey) String() string { return k.ID }

// Equal reports whether k and other identify the same server transaction.
func (k ServerKey) Equal(other ServerKey) bool { return k.ID == other.ID }

// BranchMethod is a (branch, method) pair, used both as the ClientKey
// shape and as an element of a Record's stateless response-branch set.
type BranchMethod struct {
	Branch string
	Method string
}

// Record is one entry in the Index: either a client or a server
// transaction, carrying everything the dispatcher needs to route further
// messages to the worker driving it.
type Record struct {
	Ref    Ref
	Kind   Kind
	Client ClientKey
	Server ServerKey

	// AckID is the RFC 2543 ACK-matching secondary key. It is only set for
	// server INVITE transactions.
	AckID string

	Worker  Worker
	AppData any

	// ResponseToTag disambiguates 2543-style ACK matching when more than
	// one server transaction shares an AckID.
	ResponseToTag string

	// StatelessResponseBranches is the set of (branch, method) pairs for
	// which a stateless response was forwarded through this transaction,
	// stored as an ordered slice for diagnostic stability even though
	// membership is the only thing that matters semantically.
	StatelessResponseBranches []BranchMethod

	// Expire is an absolute Unix timestamp; zero means "never expires".
	Expire int64
}

func (r Record) hasBranchMethod(bm BranchMethod) bool {
	for _, x := range r.StatelessResponseBranches {
		if x == bm {
			return true
		}
	}
	return false
}

// String renders a short diagnostic line, used by Index.DebugFormat.
func (r Record) String() string {
	switch r.Kind {
	case Client:
		return fmt.Sprintf("%s client(%s) worker=%v expire=%d", r.Ref, r.Client, r.Worker, r.Expire)
	default:
		return fmt.Sprintf("%s server(%s) ack=%q tag=%q worker=%v expire=%d", r.Ref, r.Server, r.AckID, r.ResponseToTag, r.Worker, r.Expire)
	}
}
