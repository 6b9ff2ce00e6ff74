package hierarchy

import "github.com/mtkira/weavetext/opid"

// SubscriptionID identifies one call to Subscribe/SubscribeRoot, for later
// Unsubscribe/UnsubscribeRoot.
type SubscriptionID uint64

// IndexKind distinguishes the two ways a path segment can address a child
// within its parent container.
type IndexKind uint8

const (
	// IndexKey addresses a child by name, e.g. a root container's name.
	IndexKey IndexKind = iota
	// IndexPos addresses a child by its ordinal position, e.g. a run's
	// offset within a sequence.
	IndexPos
)

// Index is one segment of a Path.
type Index struct {
	Kind IndexKind
	Key  string
	Pos  int
}

// KeyIndex builds a name-addressed path segment.
func KeyIndex(key string) Index { return Index{Kind: IndexKey, Key: key} }

// PosIndex builds a position-addressed path segment.
func PosIndex(pos int) Index { return Index{Kind: IndexPos, Pos: pos} }

// Path is a sequence of Index segments from a root container down to some
// descendant.
type Path []Index

// ContainerIndexer resolves a child container's position within its
// parent, the way the parent container itself understands it. Implemented
// by replica's container registry; Hierarchy has no notion of container
// contents beyond parentage.
type ContainerIndexer interface {
	IndexOfChild(parent, child opid.ContainerID) (Index, bool)
}

// Observer is a subscriber callback. It must not block; it runs
// synchronously on the caller that triggered the mutation, after the
// replica's coarse lock has been released (see package doc).
type Observer func(Event)

// RawEvent is what a container hands to Hierarchy.Notify after applying a
// mutation: its own identity, whether the mutation was local, and an
// opaque description of what changed. Hierarchy never inspects Diff; it
// only routes the event to the right observers and rewrites the path.
type RawEvent struct {
	Container opid.ContainerID
	Local     bool
	Diff      any
}

// Event is what an Observer actually receives: a RawEvent enriched with
// the path from whichever container a deep observer is watching
// (CurrentTarget) down to the event's original target (Target), or the
// absolute path from the root (for root observers, where CurrentTarget is
// the zero ContainerID). Shallow observers get no RelativePath.
type Event struct {
	Target        opid.ContainerID
	CurrentTarget opid.ContainerID
	HasCurrent    bool
	AbsolutePath  Path
	RelativePath  Path
	Local         bool
	Diff          any
}

// eventDispatch is one batch of subscriptions to invoke, together with the
// path rewrite (if any) that applies to all of them.
type eventDispatch struct {
	subIDs  []SubscriptionID
	rewrite *pathRewrite
}

type pathRewrite struct {
	path          Path
	target        opid.ContainerID
	hasTarget     bool
}
