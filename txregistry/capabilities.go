package txregistry

import "time"

// Worker identifies the process/goroutine/actor driving a transaction. The
// Index never dereferences it; it is an opaque comparable handle threaded
// through to WorkerRegistry.
type Worker any

// Signal is delivered to a worker by delete_expired's liveness probe.
type Signal int

const (
	// SigExpired tells the worker its transaction's timer fired and it
	// should unwind whatever state it holds for it.
	SigExpired Signal = iota
)

// WorkerHandle is returned by WorkerRegistry.Alive alongside the liveness
// verdict, for use in the following Signal call.
type WorkerHandle any

// WorkerRegistry reports whether a Worker is still alive and accepts
// best-effort signals to it. The Index consults this only from
// delete_expired; it never blocks waiting on a reply.
type WorkerRegistry interface {
	Alive(w Worker) (bool, WorkerHandle)
	Signal(h WorkerHandle, sig Signal) error
}

// Clock supplies the current time as seconds since the Unix epoch,
// matching the monotonic-seconds contract the expiry sweep requires.
type Clock interface {
	Now() int64
}

type systemClock struct{}

func (systemClock) Now() int64 { return time.Now().Unix() }

// SystemClock is the default Clock, backed by time.Now.
var SystemClock Clock = systemClock{}

// noopWorkerRegistry treats every worker as dead, which is the safe
// default for callers that never register a real WorkerRegistry: expiry
// sweeps just skip the liveness signal instead of erroring.
type noopWorkerRegistry struct{}

func (noopWorkerRegistry) Alive(Worker) (bool, WorkerHandle) { return false, nil }
func (noopWorkerRegistry) Signal(WorkerHandle, Signal) error { return nil }

// NoopWorkerRegistry is a WorkerRegistry that reports every worker dead.
var NoopWorkerRegistry WorkerRegistry = noopWorkerRegistry{}
