package txregistry

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sipwire/core/log"
)

// IndexOptions configures the external capabilities an Index consults.
// The zero value is usable: Parser must still be supplied by the caller
// before Add* is called (a nil Parser makes AddServerTransaction panic,
// since there's no sane value to fall back to), but Clock, Workers and
// Logger all have safe defaults.
type IndexOptions struct {
	Parser  SIPParser
	Clock   Clock
	Workers WorkerRegistry
	Logger  *slog.Logger
}

// Index is the in-memory transaction matching table. It is safe for
// concurrent use: although the specification models a single logical
// owner reached only through its own dispatcher goroutine, guarding it
// with a mutex costs nothing and matches the teacher's transactionStore,
// which takes the same belt-and-suspenders approach.
type Index struct {
	mu      sync.RWMutex
	nextRef atomic.Uint64

	order   []Ref
	records map[Ref]*Record

	clientIdx map[ClientKey]Ref
	serverIdx map[ServerKey]Ref

	parser  SIPParser
	clock   Clock
	workers WorkerRegistry
	logger  *slog.Logger
}

// NewIndex returns an empty Index (the specification's empty()).
func NewIndex(opts IndexOptions) *Index {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	workers := opts.Workers
	if workers == nil {
		workers = NoopWorkerRegistry
	}
	return &Index{
		records:   make(map[Ref]*Record),
		clientIdx: make(map[ClientKey]Ref),
		serverIdx: make(map[ServerKey]Ref),
		parser:    opts.Parser,
		clock:     clock,
		workers:   workers,
		logger:    log.OrDefault(opts.Logger),
	}
}

func (idx *Index) allocRef() Ref {
	return Ref(idx.nextRef.Add(1))
}

// AddClientTransaction inserts a new client record keyed by (branch,
// method). If a client record already exists with that key, the insert is
// a no-op: the existing record is logged and returned with added=false.
func (idx *Index) AddClientTransaction(method, branch string, worker Worker) (Record, bool) {
	key := ClientKey{Branch: branch, Method: method}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if ref, ok := idx.clientIdx[key]; ok {
		existing := *idx.records[ref]
		idx.logger.Warn("duplicate client transaction add ignored", "key", key.String())
		return existing, false
	}

	ref := idx.allocRef()
	rec := &Record{Ref: ref, Kind: Client, Client: key, Worker: worker}
	idx.records[ref] = rec
	idx.clientIdx[key] = ref
	idx.order = append(idx.order, ref)
	return *rec, true
}

// AddServerTransaction inserts a new server record, deriving its id (and,
// for INVITE, its 2543 ACK id) from req via the SIPParser. A parser error
// is logged and the index is left unchanged, matching the mutator error
// policy: the Index never fails a protocol handler's call.
func (idx *Index) AddServerTransaction(req Request, worker Worker) (Record, bool) {
	id, err := idx.parser.GetServerTransactionID(req)
	if err != nil {
		idx.logger.Warn("could not derive server transaction id", "error", err)
		return Record{}, false
	}

	var ackID string
	if req.Method() == "INVITE" {
		ackID, err = idx.parser.GetServerTransactionAckID2543(req)
		if err != nil {
			idx.logger.Warn("could not derive 2543 ack id for invite", "error", err)
			return Record{}, false
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if ref, ok := idx.serverIdx[id]; ok {
		existing := *idx.records[ref]
		idx.logger.Warn("duplicate server transaction add ignored", "key", id.String())
		return existing, false
	}

	ref := idx.allocRef()
	rec := &Record{Ref: ref, Kind: Server, Server: id, AckID: ackID, Worker: worker}
	idx.records[ref] = rec
	idx.serverIdx[id] = ref
	idx.order = append(idx.order, ref)
	return *rec, true
}

// GetClientTransaction returns the client record matching (branch,
// method), if any.
func (idx *Index) GetClientTransaction(method, branch string) (Record, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ref, ok := idx.clientIdx[ClientKey{Branch: branch, Method: method}]
	if !ok {
		return Record{}, false
	}
	return *idx.records[ref], true
}

// GetServerTransactionUsingRequest implements the two-step (primary id,
// then 2543 ACK fallback) lookup of a server transaction for an incoming
// request. err is non-nil only when the parser itself failed; a clean miss
// is (Record{}, false, nil).
func (idx *Index) GetServerTransactionUsingRequest(req Request) (Record, bool, error) {
	id, err := idx.parser.GetServerTransactionID(req)
	if err == Is2543Ack {
		return idx.matchServer2543Ack(req)
	}
	if err != nil {
		idx.logger.Warn("could not derive server transaction id from request", "error", err)
		return Record{}, false, err
	}

	idx.mu.RLock()
	ref, ok := idx.serverIdx[id]
	var rec Record
	if ok {
		rec = *idx.records[ref]
	}
	idx.mu.RUnlock()

	if ok {
		return rec, true, nil
	}
	if req.Method() == "ACK" {
		return idx.matchServer2543Ack(req)
	}
	return Record{}, false, nil
}

// matchServer2543Ack implements the RFC 2543 ACK matching fallback: find
// the unique server record whose AckID matches the request's derived ack
// id and whose ResponseToTag matches the request's To-tag. A record whose
// AckID matches but whose tag differs is logged and skipped rather than
// treated as an error, since another record further down the scan may
// still match.
func (idx *Index) matchServer2543Ack(req Request) (Record, bool, error) {
	ackID, err := idx.parser.GetServerTransactionAckID2543(req)
	if err != nil {
		idx.logger.Warn("could not derive 2543 ack id from request", "error", err)
		return Record{}, false, err
	}
	toTag, _ := idx.parser.GetTag(req.ToHeader())

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for _, ref := range idx.order {
		rec := idx.records[ref]
		if rec.Kind != Server || rec.AckID == "" || rec.AckID != ackID {
			continue
		}
		if rec.ResponseToTag != toTag {
			idx.logger.Debug("2543 ack id matched but to-tag differs, skipping", "ref", rec.Ref.String())
			continue
		}
		return *rec, true, nil
	}
	return Record{}, false, nil
}

// GetServerTransactionUsingResponse derives a client-transaction-style id
// from resp and looks it up as a server key, the path a stateless server
// uses to match its own earlier outbound response.
func (idx *Index) GetServerTransactionUsingResponse(resp Response) (Record, bool, error) {
	ck, err := idx.parser.GetClientTransactionID(resp)
	if err != nil {
		idx.logger.Warn("could not derive client transaction id from response", "error", err)
		return Record{}, false, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ref, ok := idx.serverIdx[ServerKey{ID: ck.String()}]
	if !ok {
		return Record{}, false, nil
	}
	return *idx.records[ref], true, nil
}

// GetServerTransactionUsingStatelessResponseBranch scans for the first
// record whose stateless response-branch set contains (branch, method).
func (idx *Index) GetServerTransactionUsingStatelessResponseBranch(branch, method string) (Record, bool) {
	bm := BranchMethod{Branch: branch, Method: method}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, ref := range idx.order {
		rec := idx.records[ref]
		if rec.hasBranchMethod(bm) {
			return *rec, true
		}
	}
	return Record{}, false
}

// GetByWorker returns every record currently assigned to worker, in
// insertion order.
func (idx *Index) GetByWorker(worker Worker) []Record {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []Record
	for _, ref := range idx.order {
		rec := idx.records[ref]
		if rec.Worker == worker {
			out = append(out, *rec)
		}
	}
	return out
}

// GetByWorkerUnique is GetByWorker for callers that demand exactly one
// match; zero matches is ErrTransactionNotFound, more than one is
// ErrAmbiguousWorkerMatch.
func (idx *Index) GetByWorkerUnique(worker Worker) (Record, error) {
	matches := idx.GetByWorker(worker)
	switch len(matches) {
	case 0:
		return Record{}, fmt.Errorf("%w: worker %v", ErrTransactionNotFound, worker)
	case 1:
		return matches[0], nil
	default:
		return Record{}, fmt.Errorf("%w: worker %v matches %d records", ErrAmbiguousWorkerMatch, worker, len(matches))
	}
}

// SetWorker replaces ref's worker field in place. An unknown ref is
// logged and ignored.
func (idx *Index) SetWorker(ref Ref, worker Worker) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rec, ok := idx.records[ref]
	if !ok {
		idx.logger.Warn("set_worker on unknown ref", "ref", ref.String())
		return
	}
	rec.Worker = worker
}

// SetAppData replaces ref's application-owned datum in place.
func (idx *Index) SetAppData(ref Ref, data any) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rec, ok := idx.records[ref]
	if !ok {
		idx.logger.Warn("set_appdata on unknown ref", "ref", ref.String())
		return
	}
	rec.AppData = data
}

// SetResponseToTag replaces ref's 2543-ack disambiguation tag in place.
func (idx *Index) SetResponseToTag(ref Ref, tag string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rec, ok := idx.records[ref]
	if !ok {
		idx.logger.Warn("set_response_to_tag on unknown ref", "ref", ref.String())
		return
	}
	rec.ResponseToTag = tag
}

// AppendResponseBranch adds (branch, method) to ref's stateless response
// set, deduplicating against an already-present pair.
func (idx *Index) AppendResponseBranch(ref Ref, branch, method string) {
	bm := BranchMethod{Branch: branch, Method: method}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	rec, ok := idx.records[ref]
	if !ok {
		idx.logger.Warn("append_response_branch on unknown ref", "ref", ref.String())
		return
	}
	if rec.hasBranchMethod(bm) {
		return
	}
	rec.StatelessResponseBranches = append(rec.StatelessResponseBranches, bm)
}

// Update locates a record by rec.Ref and replaces it in place. An unknown
// ref drops all state in the index — the specification preserves this
// defensive-but-surprising behavior from the system it was distilled from
// and flags it as likely a bug rather than fixing it silently; see
// DESIGN.md's Open Questions resolution.
func (idx *Index) Update(rec Record) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.records[rec.Ref]; !ok {
		idx.logger.Error("update on unknown ref, dropping all transaction state", "ref", rec.Ref.String())
		idx.records = make(map[Ref]*Record)
		idx.clientIdx = make(map[ClientKey]Ref)
		idx.serverIdx = make(map[ServerKey]Ref)
		idx.order = nil
		return
	}

	stored := rec
	idx.records[rec.Ref] = &stored
	if rec.Kind == Client {
		idx.clientIdx[rec.Client] = rec.Ref
	} else {
		idx.serverIdx[rec.Server] = rec.Ref
	}
}

// DeleteByWorker drops every record assigned to worker.
func (idx *Index) DeleteByWorker(worker Worker) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var kept []Ref
	for _, ref := range idx.order {
		rec := idx.records[ref]
		if rec.Worker == worker {
			idx.dropLocked(ref, rec)
			continue
		}
		kept = append(kept, ref)
	}
	idx.order = kept
}

// dropLocked removes ref from every index structure except idx.order,
// which the caller is responsible for rebuilding; it must be called with
// idx.mu held for writing.
func (idx *Index) dropLocked(ref Ref, rec *Record) {
	delete(idx.records, ref)
	if rec.Kind == Client {
		delete(idx.clientIdx, rec.Client)
	} else {
		delete(idx.serverIdx, rec.Server)
	}
}

// DeleteExpired drops every record whose Expire is set (non-zero) and has
// passed, signaling each one's worker (if still alive) so it can unwind.
// The liveness probe and signal are best-effort: errors from either are
// swallowed, since a dead or unreachable worker must never block the
// sweep. It returns the number of records removed.
func (idx *Index) DeleteExpired() int {
	now := idx.clock.Now()

	idx.mu.Lock()
	var expired []*Record
	var kept []Ref
	for _, ref := range idx.order {
		rec := idx.records[ref]
		if rec.Expire > 0 && rec.Expire <= now {
			expired = append(expired, rec)
			idx.dropLocked(ref, rec)
			continue
		}
		kept = append(kept, ref)
	}
	idx.order = kept
	idx.mu.Unlock()

	for _, rec := range expired {
		idx.signalExpired(rec)
	}
	return len(expired)
}

func (idx *Index) signalExpired(rec *Record) {
	if rec.Worker == nil {
		return
	}
	alive, handle := idx.workers.Alive(rec.Worker)
	if !alive {
		return
	}
	if err := idx.workers.Signal(handle, SigExpired); err != nil {
		idx.logger.Debug("expiry signal delivery failed, ignoring", "ref", rec.Ref.String(), "error", err)
	}
}

// Length returns the number of records currently held.
func (idx *Index) Length() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.order)
}

// DebugFormat renders an immutable, insertion-ordered snapshot of every
// record for logging. It never exposes the live map, matching the
// concurrency model's "debug_format yields an immutable snapshot" rule.
func (idx *Index) DebugFormat() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var sb strings.Builder
	for _, ref := range idx.order {
		sb.WriteString(idx.records[ref].String())
		sb.WriteString("\n")
	}
	return sb.String()
}
