// Package oplog implements the per-site append-only change log: the
// causal DAG of Changes, the version vector derived from it, and the
// Import/Export pair that lets two replicas reconcile.
//
// Grounded on crdt.CausalTree's Yarns (per-site append-only atom storage)
// and its Merge (sitemap-aware import of a peer's atoms), generalized
// from a flat per-atom weave into explicit Change records so causal
// dependency tracking doesn't have to be reconstructed by walking atom
// parent pointers every time.
package oplog

import (
	"fmt"

	"github.com/mtkira/weavetext/opid"
)

// OpKind distinguishes the two primitive op shapes a Change can carry.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpDelete
)

func (k OpKind) String() string {
	if k == OpDelete {
		return "delete"
	}
	return "insert"
}

// Op is a single primitive text op. Exactly one of the Insert or Delete
// field groups is meaningful, selected by Kind; this is a tagged union
// rather than an interface so a Change's Ops slice gob-encodes directly
// (see replica's wire codec).
type Op struct {
	Kind OpKind

	// Insert fields.
	Content                string
	OriginLeft, OriginRight opid.OpId

	// Delete fields.
	Target opid.OpIdSpan
}

// Len reports how many counters this op consumes from its Change's span.
func (op Op) Len() int {
	if op.Kind == OpDelete {
		return int(op.Target.Len)
	}
	return len(op.Content)
}

func (op Op) String() string {
	if op.Kind == OpDelete {
		return fmt.Sprintf("delete(%s)", op.Target)
	}
	return fmt.Sprintf("insert(%q, left=%s, right=%s)", op.Content, op.OriginLeft, op.OriginRight)
}

// Change is the unit of causal dependency: one OpIdSpan minted by a
// single site against a single container, the causal frontier it was
// built on, its Lamport timestamp, and the ops it carries.
//
// A local insert always produces a single-Op Change. A local delete may
// produce several Ops, one per maximal contiguous run of atoms removed
// from the sequence, all sharing the one span minted for the delete
// itself. Every Op in a Change targets the same Container; replica
// routes a whole Change to that container's Sequence in one pass (see
// replica.applyChange).
type Change struct {
	Container opid.ContainerID
	Span      opid.OpIdSpan
	Deps      []opid.OpId
	Lamport   uint64
	Ops       []Op
}

func (c Change) String() string {
	return fmt.Sprintf("Change{%s@%s, lamport=%d, deps=%v, ops=%v}", c.Span, c.Container, c.Lamport, c.Deps, c.Ops)
}

// MissingDependencyError reports that Import couldn't place one or more
// pending changes because Needed hasn't arrived yet. The changes that
// were ready were still committed; Needed names the gap that would let
// progress resume.
type MissingDependencyError struct {
	Needed opid.OpIdSpan
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("oplog: missing dependency %s", e.Needed)
}
