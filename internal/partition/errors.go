package partition

import "tlog.app/go/errors"

// Error taxonomy for the store coordinator, per spec §4.5/§8. Fatal
// errors (IndexInconsistent, IOFailure) indicate the store's on-disk
// invariants can no longer be trusted and the caller should stop issuing
// writes; the rest are ordinary, recoverable operation failures.
var (
	ErrNotInitialized      = errors.New("partition: not initialized")
	ErrAlreadyInitialized  = errors.New("partition: already initialized")
	ErrNoSuchObject        = errors.New("partition: no such object")
	ErrNoSuchParent        = errors.New("partition: no such parent")
	ErrSchemaViolation     = errors.New("partition: schema violation")
	ErrAliasCycle          = errors.New("partition: alias would create a cycle")
	ErrAliasChain          = errors.New("partition: alias cannot target another alias")
	ErrAliasToSelf         = errors.New("partition: alias cannot target itself")
	ErrAliasExternal       = errors.New("partition: alias target is outside this partition")
	ErrAliasTargetMissing  = errors.New("partition: alias target does not exist")
	ErrIndexNotFound       = errors.New("partition: index not found")
	ErrIndexInconsistent   = errors.New("partition: index inconsistent") // fatal
	ErrIOFailure           = errors.New("partition: io failure")         // fatal
	ErrUnknownModification = errors.New("partition: unknown modification operation")
	ErrEntryAlreadyExists  = errors.New("partition: entry already exists")
	ErrNotLeaf             = errors.New("partition: entry has children")
	ErrHierarchyCycle      = errors.New("partition: move destination is within the entry's own subtree")
)
