package crdt

import "github.com/pkg/errors"

// Sentinel errors for the failure modes a CRDT operation can report. All of
// them are recoverable. Except for ErrAwaitingSite, when one of these is
// returned the receiver's state is unchanged; ErrAwaitingSite is returned
// after the mutation has been applied locally and its op cached. Duplicate ops are not represented here — they are silently
// skipped and surface as an empty LocalOp instead.
var (
	// ErrInvalidIndex is returned when a sequence index falls outside the
	// valid range for the requested operation.
	ErrInvalidIndex = errors.New("crdt: index out of range")

	// ErrInvalidPointer is returned when a JSON pointer does not resolve,
	// resolves to an immutable leaf, or would replace the Json root.
	ErrInvalidPointer = errors.New("crdt: invalid json pointer")

	// ErrInvalidKey is returned when an operation uses a reserved key, such
	// as "__TYPE__" in a Json object.
	ErrInvalidKey = errors.New("crdt: reserved key")

	// ErrNoSuchElement is returned when removing an absent key from a Set
	// or Map.
	ErrNoSuchElement = errors.New("crdt: no such element")

	// ErrAwaitingSite is returned by local mutators when the CRDT has no
	// site id yet; the op has been appended to the awaiting-site cache
	// instead of being handed back to the caller.
	ErrAwaitingSite = errors.New("crdt: awaiting site id assignment")

	// ErrAlreadyHasSiteId is returned by AddSiteID when the CRDT's site is
	// already non-zero.
	ErrAlreadyHasSiteId = errors.New("crdt: site id already assigned")

	// ErrDuplicateUid names a duplicate or non-monotonic uid. No function in
	// this package returns it: decoding and ExecuteRemote do not check dots
	// for monotonicity.
	ErrDuplicateUid = errors.New("crdt: duplicate or non-monotonic uid")

	// ErrInvalidOp is returned by Counter.MergeAny when the other value is
	// not a Counter. ExecuteRemote methods do not validate an op's structure
	// and do not return it.
	ErrInvalidOp = errors.New("crdt: malformed op")
)

// wrap attaches a short message to the given sentinel, preserving it for
// errors.Is / errors.As while adding call-site context.
func wrap(sentinel error, msg string) error {
	return errors.Wrap(sentinel, msg)
}
