package txregistry_test

import (
	"errors"
	"testing"

	"github.com/sipwire/core/log"
	"github.com/sipwire/core/txregistry"
)

// fakeRequest is the minimal Request the Index needs; fakeParser derives
// match keys from its fields directly instead of parsing wire bytes.
type fakeRequest struct {
	method   string
	callID   string
	is2543   bool
	ackID    string
	toTag    string
	serverID string
}

func (r fakeRequest) Method() string { return r.method }

func (r fakeRequest) ToHeader() txregistry.Header { return r.toTag }

type fakeResponse struct {
	serverID string
}

type fakeParser struct {
	// toTag is not consulted: GetServerTransactionID reads the request's
	// serverID field and GetTag reads the tag from the request's To header.
	toTag map[string]string
}

func (p fakeParser) GetClientTransactionID(resp txregistry.Response) (txregistry.ClientKey, error) {
	r := resp.(fakeResponse)
	return txregistry.ClientKey{}, errors.New("unused: " + r.serverID)
}

func (p fakeParser) GetServerTransactionID(req txregistry.Request) (txregistry.ServerKey, error) {
	r := req.(fakeRequest)
	if r.is2543 {
		return txregistry.ServerKey{}, txregistry.Is2543Ack
	}
	return txregistry.ServerKey{ID: r.serverID}, nil
}

func (p fakeParser) GetServerTransactionAckID2543(req txregistry.Request) (string, error) {
	r := req.(fakeRequest)
	return r.ackID, nil
}

func (p fakeParser) GetTag(h txregistry.Header) (string, bool) {
	tag, ok := h.(string)
	return tag, ok && tag != ""
}

type fixedClock struct{ now int64 }

func (c fixedClock) Now() int64 { return c.now }

func newIndex(t *testing.T) *txregistry.Index {
	t.Helper()
	return txregistry.NewIndex(txregistry.IndexOptions{
		Parser: fakeParser{},
		Logger: log.Noop(),
	})
}

func TestAddClientTransaction_SeedScenario5(t *testing.T) {
	idx := newIndex(t)
	worker := "W"

	rec, added := idx.AddClientTransaction("INVITE", "z9hG4bK.abc", worker)
	if !added {
		t.Fatal("expected AddClientTransaction to insert a new record")
	}
	if rec.Worker != worker {
		t.Fatalf("worker = %v, want %v", rec.Worker, worker)
	}

	got, ok := idx.GetClientTransaction("INVITE", "z9hG4bK.abc")
	if !ok {
		t.Fatal("expected GetClientTransaction to find the inserted record")
	}
	if got.Ref != rec.Ref {
		t.Errorf("got.Ref = %v, want %v", got.Ref, rec.Ref)
	}

	if _, ok := idx.GetClientTransaction("ACK", "z9hG4bK.abc"); ok {
		t.Error("expected GetClientTransaction(ACK, ...) to miss on a different method")
	}
}

func TestAddClientTransaction_DuplicateIsNoop(t *testing.T) {
	idx := newIndex(t)
	first, _ := idx.AddClientTransaction("INVITE", "br", "W1")
	second, added := idx.AddClientTransaction("INVITE", "br", "W2")

	if added {
		t.Fatal("expected duplicate add to report added=false")
	}
	if second.Ref != first.Ref || second.Worker != "W1" {
		t.Errorf("duplicate add returned a mutated record: %+v", second)
	}
	if idx.Length() != 1 {
		t.Errorf("Length() = %d, want 1", idx.Length())
	}
}

func TestAddServerTransaction_InviteCarriesAckID(t *testing.T) {
	idx := newIndex(t)
	req := fakeRequest{method: "INVITE", serverID: "SID", ackID: "AID"}

	rec, added := idx.AddServerTransaction(req, "W")
	if !added {
		t.Fatal("expected AddServerTransaction to insert a new record")
	}
	if rec.AckID != "AID" {
		t.Errorf("AckID = %q, want %q", rec.AckID, "AID")
	}
}

func TestAddServerTransaction_NonInviteHasNoAckID(t *testing.T) {
	idx := newIndex(t)
	req := fakeRequest{method: "BYE", serverID: "SID2"}

	rec, added := idx.AddServerTransaction(req, "W")
	if !added {
		t.Fatal("expected AddServerTransaction to insert a new record")
	}
	if rec.AckID != "" {
		t.Errorf("AckID = %q, want empty for non-INVITE", rec.AckID)
	}
}

func Test2543AckMatching_SeedScenario6(t *testing.T) {
	idx := newIndex(t)
	invite := fakeRequest{method: "INVITE", serverID: "SID", ackID: "AID"}
	rec, _ := idx.AddServerTransaction(invite, "W")
	idx.SetResponseToTag(rec.Ref, "tag-1")

	ack := fakeRequest{method: "ACK", is2543: true, ackID: "AID", toTag: "tag-1"}
	got, ok, err := idx.GetServerTransactionUsingRequest(ack)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected the 2543 ACK fallback to match the INVITE transaction")
	}
	if got.Ref != rec.Ref {
		t.Errorf("matched ref = %v, want %v", got.Ref, rec.Ref)
	}
}

func Test2543AckMatching_TagMismatchSkipsRecord(t *testing.T) {
	idx := newIndex(t)
	invite := fakeRequest{method: "INVITE", serverID: "SID", ackID: "AID"}
	rec, _ := idx.AddServerTransaction(invite, "W")
	idx.SetResponseToTag(rec.Ref, "tag-1")

	ack := fakeRequest{method: "ACK", is2543: true, ackID: "AID", toTag: "some-other-tag"}
	_, ok, err := idx.GetServerTransactionUsingRequest(ack)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected a mismatched to-tag to skip the record and miss")
	}
}

func TestGetServerTransactionUsingRequest_FallsBackTo2543OnAckMiss(t *testing.T) {
	idx := newIndex(t)
	invite := fakeRequest{method: "INVITE", serverID: "SID", ackID: "AID"}
	rec, _ := idx.AddServerTransaction(invite, "W")

	// A regenerated branch means the primary lookup misses even though the
	// method is ACK, so the fallback to 2543 matching must still fire.
	ack := fakeRequest{method: "ACK", serverID: "regenerated-branch-id", ackID: "AID"}
	got, ok, err := idx.GetServerTransactionUsingRequest(ack)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || got.Ref != rec.Ref {
		t.Fatalf("expected fallback match to ref %v, got %+v ok=%v", rec.Ref, got, ok)
	}
}

func TestUniqueness_DuplicateKindIDRejected(t *testing.T) {
	idx := newIndex(t)
	req := fakeRequest{method: "BYE", serverID: "SID"}

	idx.AddServerTransaction(req, "W1")
	_, added := idx.AddServerTransaction(req, "W2")
	if added {
		t.Fatal("expected a duplicate (kind, id) add to be rejected")
	}
	if idx.Length() != 1 {
		t.Errorf("Length() = %d, want 1", idx.Length())
	}
}

func TestAppendResponseBranch_Idempotent(t *testing.T) {
	idx := newIndex(t)
	rec, _ := idx.AddClientTransaction("INVITE", "br", "W")

	idx.AppendResponseBranch(rec.Ref, "br2", "INVITE")
	idx.AppendResponseBranch(rec.Ref, "br2", "INVITE")

	got, ok := idx.GetServerTransactionUsingStatelessResponseBranch("br2", "INVITE")
	if !ok {
		t.Fatal("expected the appended branch to be found")
	}
	if len(got.StatelessResponseBranches) != 1 {
		t.Errorf("StatelessResponseBranches = %v, want exactly one entry", got.StatelessResponseBranches)
	}
}

func TestDeleteByWorker(t *testing.T) {
	idx := newIndex(t)
	idx.AddClientTransaction("INVITE", "br1", "W1")
	idx.AddClientTransaction("BYE", "br2", "W2")

	idx.DeleteByWorker("W1")

	if _, ok := idx.GetClientTransaction("INVITE", "br1"); ok {
		t.Error("expected W1's transaction to be removed")
	}
	if _, ok := idx.GetClientTransaction("BYE", "br2"); !ok {
		t.Error("expected W2's transaction to survive")
	}
}

func TestDeleteExpired(t *testing.T) {
	idx := txregistry.NewIndex(txregistry.IndexOptions{
		Parser: fakeParser{},
		Clock:  fixedClock{now: 100},
		Logger: log.Noop(),
	})

	rec, _ := idx.AddClientTransaction("INVITE", "br1", "W1")
	rec.Expire = 50 // already passed
	idx.Update(rec)

	never, _ := idx.AddClientTransaction("BYE", "br2", "W2")
	never.Expire = 0 // never expires
	idx.Update(never)

	future, _ := idx.AddClientTransaction("ACK", "br3", "W3")
	future.Expire = 200 // not yet
	idx.Update(future)

	n := idx.DeleteExpired()
	if n != 1 {
		t.Fatalf("DeleteExpired() removed %d records, want 1", n)
	}
	if idx.Length() != 2 {
		t.Errorf("Length() after sweep = %d, want 2", idx.Length())
	}
	if _, ok := idx.GetClientTransaction("INVITE", "br1"); ok {
		t.Error("expected the expired record to be gone")
	}
}

func TestDeleteExpired_SignalsAliveWorker(t *testing.T) {
	registry := &countingWorkerRegistry{alive: map[txregistry.Worker]bool{"W1": true}}
	idx := txregistry.NewIndex(txregistry.IndexOptions{
		Parser:  fakeParser{},
		Clock:   fixedClock{now: 100},
		Workers: registry,
		Logger:  log.Noop(),
	})

	rec, _ := idx.AddClientTransaction("INVITE", "br1", "W1")
	rec.Expire = 50
	idx.Update(rec)

	idx.DeleteExpired()

	if registry.signals != 1 {
		t.Errorf("signals = %d, want 1", registry.signals)
	}
}

type countingWorkerRegistry struct {
	alive   map[txregistry.Worker]bool
	signals int
}

func (r *countingWorkerRegistry) Alive(w txregistry.Worker) (bool, txregistry.WorkerHandle) {
	return r.alive[w], w
}

func (r *countingWorkerRegistry) Signal(txregistry.WorkerHandle, txregistry.Signal) error {
	r.signals++
	return nil
}

func TestUpdate_UnknownRefDropsAllState(t *testing.T) {
	idx := newIndex(t)
	idx.AddClientTransaction("INVITE", "br1", "W1")

	idx.Update(txregistry.Record{Ref: 999999, Kind: txregistry.Client})

	if idx.Length() != 0 {
		t.Errorf("Length() = %d, want 0 after update on an unknown ref", idx.Length())
	}
}

func TestGetByWorkerUnique(t *testing.T) {
	idx := newIndex(t)
	idx.AddClientTransaction("INVITE", "br1", "W1")
	idx.AddClientTransaction("BYE", "br2", "W1")

	if _, err := idx.GetByWorkerUnique("W1"); !errors.Is(err, txregistry.ErrAmbiguousWorkerMatch) {
		t.Errorf("expected ErrAmbiguousWorkerMatch, got %v", err)
	}
	if _, err := idx.GetByWorkerUnique("nobody"); !errors.Is(err, txregistry.ErrTransactionNotFound) {
		t.Errorf("expected ErrTransactionNotFound, got %v", err)
	}
}
