// Package crdt provides a suite of Conflict-free Replicated Data Types:
// Sequence, List, Set, Map, Register, Counter, Text and Json.
//
// Every type here is op-based with a state-based merge fallback: local
// mutations mint a globally unique Dot and return a replicable Op; remote
// ops apply idempotently via ExecuteRemote; two full replicas converge via
// Merge regardless of delivery order, as long as delivery is FIFO per
// originating site. None of the generic collection types (Sequence, List,
// Set, Map, Register) can share one non-generic interface without losing
// their payload typing, so there is no single CRDT interface in this
// package — Counter is the only component simple enough for one, below.
package crdt

// Convergent is satisfied by components whose value and merge can be
// expressed without a type parameter. Counter is the only component that
// implements it; the generic collections (Sequence, List, Set, Map, Register) expose
// their own typed Value/Merge pairs instead.
type Convergent interface {
	Snapshot() any
	MergeAny(other Convergent) error
}

// MergeAny lets Counter participate in Convergent-typed code paths (e.g. a
// registry keyed by component name rather than by Go type).
func (c *Counter) MergeAny(other Convergent) error {
	oc, ok := other.(*Counter)
	if !ok {
		return wrap(ErrInvalidOp, "crdt: merge target is not a counter")
	}
	c.Merge(oc)
	return nil
}

// Snapshot satisfies Convergent by boxing Counter.Value's int64 as any.
func (c *Counter) Snapshot() any { return c.Value() }
