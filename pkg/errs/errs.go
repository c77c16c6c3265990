// Package errs defines the indexer's error taxonomy. Failures that belong
// to one of its classes carry the matching kind (via Wrap or
// fmt.Errorf("...: %w", ...)); other failures are returned as plain
// wrapped errors. Nothing panics for control flow. Callers distinguish
// kinds with errors.Is/errors.As.
package errs

import "errors"

// Sentinel errors identifying each class in the taxonomy. Wrap these with
// fmt.Errorf("%w: ...", ErrX) to attach context; unwrap with errors.Is.
var (
	// ErrConfiguration signals invalid collaborator input discovered at
	// bring-up (missing endpoint, malformed path, ...). Fatal.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataStoreConnection signals the relational store could not be
	// reached at bring-up. Fatal.
	ErrDataStoreConnection = errors.New("data store connection error")

	// ErrDataSchema signals the relational schema is missing or
	// incompatible at bring-up. Fatal.
	ErrDataSchema = errors.New("data schema error")

	// ErrStorageFault signals an authenticated-store I/O failure. Aborts
	// the current update; the update is retried when next observed,
	// it is not itself fatal to the process.
	ErrStorageFault = errors.New("storage fault")

	// ErrRootDivergence signals the in-memory and persistent SMT roots
	// disagree, at startup or after an update. Fatal: the engine refuses
	// to proceed once this is observed.
	ErrRootDivergence = errors.New("root divergence")

	// ErrAccountsUpdate signals a per-row account upsert failure inside a
	// writer pool worker.
	ErrAccountsUpdate = errors.New("accounts update error")

	// ErrSlotStatusUpdate signals a per-row slot status upsert failure.
	ErrSlotStatusUpdate = errors.New("slot status update error")

	// ErrEntryUpdate signals a per-row entry upsert failure.
	ErrEntryUpdate = errors.New("entry update error")

	// ErrBlockMetadata signals a per-row block metadata upsert failure.
	ErrBlockMetadata = errors.New("block metadata error")

	// ErrSubmission signals a settlement-service call failure. Non-fatal:
	// the submission driver retries on its next iteration.
	ErrSubmission = errors.New("submission error")
)

// Fault wraps a sentinel error kind with caller-supplied context, matching
// the "tagged error value" design called for in operation on the hot write
// path where an error needs structured fields (slot, pubkey) rather than
// just a formatted string.
type Fault struct {
	Kind error
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return f.Op + ": " + f.Kind.Error()
	}
	return f.Op + ": " + f.Kind.Error() + ": " + f.Err.Error()
}

func (f *Fault) Unwrap() error {
	return f.Kind
}

// Wrap builds a Fault identifying which operation failed and which
// taxonomy kind it belongs to.
func Wrap(kind error, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

// Fatal reports whether an error of this kind should abort the process
// rather than be logged and skipped, per the taxonomy's fatal/recoverable
// split.
func Fatal(err error) bool {
	switch {
	case errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrDataStoreConnection),
		errors.Is(err, ErrDataSchema),
		errors.Is(err, ErrRootDivergence):
		return true
	default:
		return false
	}
}
